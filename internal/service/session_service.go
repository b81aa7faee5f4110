package service

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/barathRC/databricks-mcq-copilot-agent/internal/bank"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/model"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/store"
	"github.com/rs/zerolog"
)

// SessionService owns the lifecycle of test sessions: creation, answer
// submission, review flags, elapsed-time ticks, completion and scoring.
// The durable copy lives in the Store; the service keeps the authoritative
// in-memory copy plus its tick clock while a session is in use.
type SessionService struct {
	loader *bank.Loader
	store  store.Store
	log    zerolog.Logger

	// now is the tick clock, swappable in tests.
	now func() time.Time

	mu     sync.Mutex
	active map[string]*activeSession
}

// activeSession pairs a session with its runtime tick anchor. lastTick is
// deliberately not persisted: after a resume, timing restarts from "now" so a
// dead interval between runs is never counted.
type activeSession struct {
	session  *model.Session
	lastTick time.Time
}

// NewSessionService creates a new SessionService.
func NewSessionService(loader *bank.Loader, st store.Store, log zerolog.Logger) *SessionService {
	return &SessionService{
		loader: loader,
		store:  st,
		log:    log.With().Str("component", "session_service").Logger(),
		now:    time.Now,
		active: make(map[string]*activeSession),
	}
}

func sessionKey(username, examCode string) string {
	return username + "|" + examCode
}

// NewSession builds a fresh session over the given question set. Pure
// construction: the caller decides whether and when to persist.
// With shuffle the order is a uniform random permutation of the question IDs;
// without it the IDs are sorted ascending, which makes creation deterministic.
func NewSession(username, examLabel, examCode string, questions map[string]model.QuestionRecord, shuffle bool) (*model.Session, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: %s (difficulty=%s)", ErrEmptyQuestionSet, examLabel, examCode)
	}

	order := make([]string, 0, len(questions))
	for qid := range questions {
		order = append(order, qid)
	}
	if shuffle {
		rand.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	} else {
		sort.Strings(order)
	}

	responses := make(map[string]*model.Response, len(order))
	for _, qid := range order {
		responses[qid] = &model.Response{}
	}

	return &model.Session{
		Username:      username,
		ExamCode:      examCode,
		ExamLabel:     examLabel,
		QuestionOrder: order,
		Responses:     responses,
		StartedAt:     time.Now(),
	}, nil
}

// ComputeSummary derives the score of a session from its responses. Pure and
// recomputable at any point of the session lifecycle.
func ComputeSummary(s *model.Session) model.Summary {
	var attempted, correct int
	for _, r := range s.Responses {
		if !r.Answered() {
			continue
		}
		attempted++
		if r.Correct != nil && *r.Correct {
			correct++
		}
	}

	summary := model.Summary{
		Attempted: attempted,
		Correct:   correct,
		Incorrect: attempted - correct,
	}
	if attempted > 0 {
		summary.Percent = float64(correct) / float64(attempted) * 100.0
	}
	return summary
}

// Start creates, activates and persists a new session for (username, examCode),
// replacing any previous one for the same pair.
func (s *SessionService) Start(ctx context.Context, username, examCode string, shuffle bool) (*model.Session, error) {
	questions, err := s.loader.Load(examCode)
	if err != nil {
		return nil, err
	}

	session, err := NewSession(username, s.loader.Label(examCode), examCode, questions, shuffle)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.active[sessionKey(username, examCode)] = &activeSession{
		session:  session,
		lastTick: s.now(),
	}
	s.mu.Unlock()

	if err := s.persist(ctx, session); err != nil {
		return session, err
	}

	s.log.Info().
		Str("username", username).
		Str("exam_code", examCode).
		Bool("shuffle", shuffle).
		Int("questions", len(session.QuestionOrder)).
		Msg("Session started")

	return session, nil
}

// Resume restores the saved session for (username, examCode) and makes it the
// active one. The tick anchor resets to now, so time spent away is not counted.
func (s *SessionService) Resume(ctx context.Context, username, examCode string) (*model.Session, error) {
	session, err := s.store.Get(ctx, username, examCode)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, ErrSessionNotFound
		}
		// An unreadable store entry is treated the same as an absent one —
		// the user can still start a fresh test.
		s.log.Warn().Err(err).
			Str("username", username).
			Str("exam_code", examCode).
			Msg("Store read failed, treating as no saved session")
		return nil, ErrSessionNotFound
	}

	// Make sure the matching bank still loads; a session without its
	// questions cannot be rendered.
	if _, err := s.loader.Load(examCode); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.active[sessionKey(username, examCode)] = &activeSession{
		session:  session,
		lastTick: s.now(),
	}
	s.mu.Unlock()

	s.log.Info().
		Str("username", username).
		Str("exam_code", examCode).
		Bool("completed", session.Completed).
		Msg("Session resumed")

	return session, nil
}

// SubmitResult is what a submit reveals: the updated response plus the answer
// key and explanation for immediate feedback.
type SubmitResult struct {
	QuestionID    string            `json:"question_id"`
	Response      *model.Response   `json:"response"`
	CorrectAnswer string            `json:"correct_answer"`
	CorrectText   string            `json:"correct_text"`
	Explanation   model.Explanation `json:"explanation"`
}

// Submit records an answer. Choice and correctness are set together; repeating
// the same submission is a no-op and a different choice overwrites the earlier
// one with its correctness recomputed.
func (s *SessionService) Submit(ctx context.Context, username, examCode, questionID, choice string) (*SubmitResult, error) {
	a, err := s.lookup(ctx, username, examCode)
	if err != nil {
		return nil, err
	}

	questions, err := s.loader.Load(examCode)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	session := a.session
	if session.Completed {
		s.mu.Unlock()
		return nil, ErrSessionCompleted
	}

	response := session.Response(questionID)
	if response == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuestionID, questionID)
	}

	question, ok := questions[questionID]
	if !ok {
		// The session references a question the bank no longer has. Data
		// drifted underneath a saved session.
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuestionID, questionID)
	}
	if _, ok := question.Choices[choice]; !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q on question %s", ErrInvalidChoice, choice, questionID)
	}

	correct := choice == question.CorrectAnswer
	response.Choice = choice
	response.Correct = &correct
	s.mu.Unlock()

	result := &SubmitResult{
		QuestionID:    questionID,
		Response:      response,
		CorrectAnswer: question.CorrectAnswer,
		CorrectText:   question.Choices[question.CorrectAnswer],
		Explanation:   question.Explanation,
	}

	if err := s.persist(ctx, session); err != nil {
		return result, err
	}
	return result, nil
}

// ToggleReview sets the review flag on a question, independent of its answer
// state.
func (s *SessionService) ToggleReview(ctx context.Context, username, examCode, questionID string, review bool) (*model.Response, error) {
	a, err := s.lookup(ctx, username, examCode)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	session := a.session
	if session.Completed {
		s.mu.Unlock()
		return nil, ErrSessionCompleted
	}
	response := session.Response(questionID)
	if response == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuestionID, questionID)
	}
	response.Review = review
	s.mu.Unlock()

	if err := s.persist(ctx, session); err != nil {
		return response, err
	}
	return response, nil
}

// Tick accumulates active time since the previous tick and persists on every
// positive delta, so an unclean shutdown loses at most one tick interval.
// Elapsed time never decreases: a non-positive delta (clock skew) is a no-op,
// and a completed session stops accumulating entirely.
func (s *SessionService) Tick(ctx context.Context, username, examCode string) (int64, error) {
	a, err := s.lookup(ctx, username, examCode)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	session := a.session
	if session.Completed {
		s.mu.Unlock()
		return session.ElapsedSeconds, nil
	}

	now := s.now()
	delta := now.Sub(a.lastTick)
	if delta <= 0 {
		s.mu.Unlock()
		return session.ElapsedSeconds, nil
	}
	session.ElapsedSeconds += int64(delta.Seconds())
	a.lastTick = now
	elapsed := session.ElapsedSeconds
	s.mu.Unlock()

	if err := s.persist(ctx, session); err != nil {
		return elapsed, err
	}
	return elapsed, nil
}

// Finish marks the session completed. Terminal and idempotent; there is no
// reopen.
func (s *SessionService) Finish(ctx context.Context, username, examCode string) (*model.Session, error) {
	a, err := s.lookup(ctx, username, examCode)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	session := a.session
	alreadyDone := session.Completed
	session.Completed = true
	s.mu.Unlock()

	if alreadyDone {
		return session, nil
	}

	if err := s.persist(ctx, session); err != nil {
		return session, err
	}

	summary := ComputeSummary(session)
	s.log.Info().
		Str("username", username).
		Str("exam_code", examCode).
		Int("attempted", summary.Attempted).
		Int("correct", summary.Correct).
		Float64("percent", summary.Percent).
		Msg("Session finished")

	return session, nil
}

// SummaryReport is the scored state of a session for the progress pane and the
// final summary screen.
type SummaryReport struct {
	Username       string        `json:"username"`
	ExamCode       string        `json:"exam_code"`
	ExamLabel      string        `json:"exam_label"`
	TotalQuestions int           `json:"total_questions"`
	ElapsedSeconds int64         `json:"elapsed_seconds"`
	ElapsedDisplay string        `json:"elapsed_display"`
	Completed      bool          `json:"completed"`
	Summary        model.Summary `json:"summary"`
}

// formatElapsed renders elapsed seconds as HH:MM:SS for display.
func formatElapsed(seconds int64) string {
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}

// Summary computes the current score of the session.
func (s *SessionService) Summary(ctx context.Context, username, examCode string) (*SummaryReport, error) {
	a, err := s.lookup(ctx, username, examCode)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session := a.session
	return &SummaryReport{
		Username:       session.Username,
		ExamCode:       session.ExamCode,
		ExamLabel:      session.ExamLabel,
		TotalQuestions: len(session.QuestionOrder),
		ElapsedSeconds: session.ElapsedSeconds,
		ElapsedDisplay: formatElapsed(session.ElapsedSeconds),
		Completed:      session.Completed,
		Summary:        ComputeSummary(session),
	}, nil
}

// NavigatorItem is one row of the question navigator.
type NavigatorItem struct {
	Index      int    `json:"index"`
	QuestionID string `json:"question_id"`
	Answered   bool   `json:"answered"`
	Review     bool   `json:"review"`
}

// Navigator lists every question in presentation order with its answered and
// review state.
func (s *SessionService) Navigator(ctx context.Context, username, examCode string) ([]NavigatorItem, error) {
	a, err := s.lookup(ctx, username, examCode)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session := a.session
	items := make([]NavigatorItem, 0, len(session.QuestionOrder))
	for i, qid := range session.QuestionOrder {
		r := session.Responses[qid]
		items = append(items, NavigatorItem{
			Index:      i,
			QuestionID: qid,
			Answered:   r.Answered(),
			Review:     r.Review,
		})
	}
	return items, nil
}

// QuestionView is a question as presented to the user. The answer key and
// explanation are revealed only after the question was submitted or the
// session completed.
type QuestionView struct {
	Index         int                `json:"index"`
	Total         int                `json:"total"`
	QuestionID    string             `json:"question_id"`
	Domain        string             `json:"domain"`
	Difficulty    string             `json:"difficulty"`
	QuestionText  string             `json:"question_text"`
	Choices       map[string]string  `json:"choices"`
	Response      *model.Response    `json:"response"`
	CorrectAnswer string             `json:"correct_answer,omitempty"`
	Explanation   *model.Explanation `json:"explanation,omitempty"`
}

// Question returns the question at the given position of the session's order.
func (s *SessionService) Question(ctx context.Context, username, examCode string, index int) (*QuestionView, error) {
	a, err := s.lookup(ctx, username, examCode)
	if err != nil {
		return nil, err
	}

	questions, err := s.loader.Load(examCode)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session := a.session
	if index < 0 || index >= len(session.QuestionOrder) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(session.QuestionOrder))
	}

	qid := session.QuestionOrder[index]
	question, ok := questions[qid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuestionID, qid)
	}
	response := session.Responses[qid]

	view := &QuestionView{
		Index:        index,
		Total:        len(session.QuestionOrder),
		QuestionID:   qid,
		Domain:       question.Domain,
		Difficulty:   question.Difficulty,
		QuestionText: question.QuestionText,
		Choices:      question.Choices,
		Response:     response,
	}
	if response.Answered() || session.Completed {
		view.CorrectAnswer = question.CorrectAnswer
		explanation := question.Explanation
		view.Explanation = &explanation
	}
	return view, nil
}

// FeedbackItem is the post-exam breakdown of one question.
type FeedbackItem struct {
	Index         int               `json:"index"`
	QuestionID    string            `json:"question_id"`
	Domain        string            `json:"domain"`
	QuestionText  string            `json:"question_text"`
	Choices       map[string]string `json:"choices"`
	Response      *model.Response   `json:"response"`
	CorrectAnswer string            `json:"correct_answer"`
	Explanation   model.Explanation `json:"explanation"`
}

// FeedbackReport is the final summary together with the full per-question
// breakdown, answer keys included.
type FeedbackReport struct {
	SummaryReport
	Items []FeedbackItem `json:"items"`
}

// Feedback builds the detailed per-question feedback for the summary screen.
func (s *SessionService) Feedback(ctx context.Context, username, examCode string) (*FeedbackReport, error) {
	report, err := s.Summary(ctx, username, examCode)
	if err != nil {
		return nil, err
	}

	questions, err := s.loader.Load(examCode)
	if err != nil {
		return nil, err
	}

	a, err := s.lookup(ctx, username, examCode)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session := a.session
	items := make([]FeedbackItem, 0, len(session.QuestionOrder))
	for i, qid := range session.QuestionOrder {
		question, ok := questions[qid]
		if !ok {
			continue
		}
		items = append(items, FeedbackItem{
			Index:         i,
			QuestionID:    qid,
			Domain:        question.Domain,
			QuestionText:  question.QuestionText,
			Choices:       question.Choices,
			Response:      session.Responses[qid],
			CorrectAnswer: question.CorrectAnswer,
			Explanation:   question.Explanation,
		})
	}

	return &FeedbackReport{SummaryReport: *report, Items: items}, nil
}

// Snapshot returns a deep copy of the active session, suitable for handing to
// the autosave worker without racing later mutations.
func (s *SessionService) Snapshot(ctx context.Context, username, examCode string) (*model.Session, error) {
	a, err := s.lookup(ctx, username, examCode)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSession(a.session), nil
}

// ActiveSnapshots returns deep copies of every active session, for the
// autosave worker's periodic flush.
func (s *SessionService) ActiveSnapshots() []*model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshots := make([]*model.Session, 0, len(s.active))
	for _, a := range s.active {
		snapshots = append(snapshots, cloneSession(a.session))
	}
	return snapshots
}

// lookup finds the active session for the pair, falling back to the durable
// copy so operations keep working across a process restart.
func (s *SessionService) lookup(ctx context.Context, username, examCode string) (*activeSession, error) {
	s.mu.Lock()
	a, ok := s.active[sessionKey(username, examCode)]
	s.mu.Unlock()
	if ok {
		return a, nil
	}

	session, err := s.store.Get(ctx, username, examCode)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a = &activeSession{session: session, lastTick: s.now()}
	s.active[sessionKey(username, examCode)] = a
	return a, nil
}

// persist writes the durable copy. On failure the in-memory session stays
// authoritative and the error surfaces to the caller as a warning that
// progress may not survive a restart.
func (s *SessionService) persist(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	snapshot := cloneSession(session)
	s.mu.Unlock()

	if err := s.store.Put(ctx, snapshot.Username, snapshot.ExamCode, snapshot); err != nil {
		s.log.Error().Err(err).
			Str("username", snapshot.Username).
			Str("exam_code", snapshot.ExamCode).
			Msg("Session persist failed")
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	return nil
}

func cloneSession(s *model.Session) *model.Session {
	clone := *s
	clone.QuestionOrder = append([]string(nil), s.QuestionOrder...)
	clone.Responses = make(map[string]*model.Response, len(s.Responses))
	for qid, r := range s.Responses {
		rc := *r
		clone.Responses[qid] = &rc
	}
	return &clone
}
