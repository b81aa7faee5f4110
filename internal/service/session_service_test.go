package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/barathRC/databricks-mcq-copilot-agent/internal/bank"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/model"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory store.Store for tests.
type memStore struct {
	sessions map[string]*model.Session
	putErr   error
	puts     int
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*model.Session)}
}

func (m *memStore) Get(ctx context.Context, username, examCode string) (*model.Session, error) {
	s, ok := m.sessions[username+"|"+examCode]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s, nil
}

func (m *memStore) Put(ctx context.Context, username, examCode string, session *model.Session) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.sessions[username+"|"+examCode] = session
	return nil
}

func testQuestions() []model.QuestionRecord {
	return []model.QuestionRecord{
		{
			QuestionID:    "Q1",
			Domain:        "Lakehouse",
			Difficulty:    "associate",
			QuestionText:  "Which layer stores raw ingested data?",
			Choices:       map[string]string{"A": "Bronze", "B": "Silver", "C": "Gold", "D": "Platinum"},
			CorrectAnswer: "A",
			Explanation: model.Explanation{
				Correct: "Bronze tables hold raw ingested data.",
				Options: map[string]string{"A": "Right.", "B": "Cleansed.", "C": "Aggregated.", "D": "Not a layer."},
			},
		},
		{
			QuestionID:    "Q2",
			Domain:        "Delta Lake",
			Difficulty:    "associate",
			QuestionText:  "Which command compacts small files?",
			Choices:       map[string]string{"A": "VACUUM", "B": "OPTIMIZE", "C": "ANALYZE", "D": "MERGE"},
			CorrectAnswer: "B",
			Explanation: model.Explanation{
				Correct: "OPTIMIZE rewrites small files into larger ones.",
				Options: map[string]string{"A": "Removes old files.", "B": "Right.", "C": "Statistics.", "D": "Upserts."},
			},
		},
		{
			QuestionID:    "Q3",
			Domain:        "Workflows",
			Difficulty:    "associate",
			QuestionText:  "What triggers a continuous job?",
			Choices:       map[string]string{"A": "Cron", "B": "Manual", "C": "Always-on scheduler"},
			CorrectAnswer: "C",
			Explanation: model.Explanation{
				Correct: "Continuous jobs restart automatically.",
				Options: map[string]string{"A": "Scheduled.", "B": "One-off.", "C": "Right."},
			},
		},
	}
}

func writeBank(t *testing.T, dir, examCode string, records []model.QuestionRecord) {
	t.Helper()
	data, err := json.Marshal(records)
	require.NoError(t, err)
	path := filepath.Join(dir, "question_bank_"+examCode+".json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func newTestService(t *testing.T, st store.Store) *SessionService {
	t.Helper()
	dir := t.TempDir()
	writeBank(t, dir, "associate", testQuestions())
	writeBank(t, dir, "mini", testQuestions()[:2])
	loader := bank.NewLoader(dir, "", map[string]string{
		"associate": "Databricks Certified Data Engineer Associate",
		"mini":      "Mini Exam",
	}, zerolog.Nop())
	return NewSessionService(loader, st, zerolog.Nop())
}

func questionMap(records []model.QuestionRecord) map[string]model.QuestionRecord {
	m := make(map[string]model.QuestionRecord, len(records))
	for _, q := range records {
		m[q.QuestionID] = q
	}
	return m
}

func TestNewSessionOrderIsPermutationOfResponses(t *testing.T) {
	questions := questionMap(testQuestions())

	for _, shuffle := range []bool{true, false} {
		session, err := NewSession("alice", "Label", "associate", questions, shuffle)
		require.NoError(t, err)

		assert.Len(t, session.QuestionOrder, len(questions))
		assert.Len(t, session.Responses, len(questions))
		for _, qid := range session.QuestionOrder {
			assert.Contains(t, session.Responses, qid)
		}
	}
}

func TestNewSessionSortedOrderIsDeterministic(t *testing.T) {
	questions := questionMap(testQuestions())

	want := make([]string, 0, len(questions))
	for qid := range questions {
		want = append(want, qid)
	}
	sort.Strings(want)

	for i := 0; i < 5; i++ {
		session, err := NewSession("alice", "Label", "associate", questions, false)
		require.NoError(t, err)
		assert.Equal(t, want, session.QuestionOrder)
	}
}

func TestNewSessionEmptyQuestionSet(t *testing.T) {
	_, err := NewSession("alice", "Label", "associate", nil, true)
	assert.ErrorIs(t, err, ErrEmptyQuestionSet)
}

func TestStartEmptyQuestionSetCreatesNothing(t *testing.T) {
	st := newMemStore()
	svc := newTestService(t, st)

	dir := t.TempDir()
	writeBank(t, dir, "empty", []model.QuestionRecord{})
	svc.loader = bank.NewLoader(dir, "", map[string]string{"empty": "Empty"}, zerolog.Nop())

	_, err := svc.Start(context.Background(), "alice", "empty", false)
	assert.ErrorIs(t, err, ErrEmptyQuestionSet)
	assert.Empty(t, st.sessions)
	assert.Empty(t, svc.active)
}

func TestComputeSummaryEmptySession(t *testing.T) {
	session, err := NewSession("alice", "Label", "associate", questionMap(testQuestions()), false)
	require.NoError(t, err)

	summary := ComputeSummary(session)
	assert.Equal(t, model.Summary{}, summary)
	assert.Equal(t, 0.0, summary.Percent)
}

func TestSubmitIdempotent(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()

	_, err := svc.Start(ctx, "alice", "associate", false)
	require.NoError(t, err)

	first, err := svc.Submit(ctx, "alice", "associate", "Q1", "A")
	require.NoError(t, err)
	second, err := svc.Submit(ctx, "alice", "associate", "Q1", "A")
	require.NoError(t, err)

	assert.Equal(t, first.Response, second.Response)
	assert.Equal(t, "A", second.Response.Choice)
	require.NotNil(t, second.Response.Correct)
	assert.True(t, *second.Response.Correct)
}

func TestSubmitOverwriteRecomputesCorrectness(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()

	_, err := svc.Start(ctx, "alice", "associate", false)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "alice", "associate", "Q1", "A")
	require.NoError(t, err)
	result, err := svc.Submit(ctx, "alice", "associate", "Q1", "B")
	require.NoError(t, err)

	assert.Equal(t, "B", result.Response.Choice)
	require.NotNil(t, result.Response.Correct)
	assert.False(t, *result.Response.Correct)

	summary, err := svc.Summary(ctx, "alice", "associate")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Summary.Attempted)
	assert.Equal(t, 0, summary.Summary.Correct)
}

func TestSubmitValidation(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()

	_, err := svc.Start(ctx, "alice", "associate", false)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "alice", "associate", "Q99", "A")
	assert.ErrorIs(t, err, ErrInvalidQuestionID)

	_, err = svc.Submit(ctx, "alice", "associate", "Q3", "D")
	assert.ErrorIs(t, err, ErrInvalidChoice)

	// Failed submissions leave the response untouched.
	items, err := svc.Navigator(ctx, "alice", "associate")
	require.NoError(t, err)
	for _, item := range items {
		assert.False(t, item.Answered)
	}
}

func TestToggleReviewIndependentOfAnswer(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()

	_, err := svc.Start(ctx, "alice", "associate", false)
	require.NoError(t, err)

	resp, err := svc.ToggleReview(ctx, "alice", "associate", "Q2", true)
	require.NoError(t, err)
	assert.True(t, resp.Review)
	assert.False(t, resp.Answered())

	_, err = svc.Submit(ctx, "alice", "associate", "Q2", "B")
	require.NoError(t, err)

	resp, err = svc.ToggleReview(ctx, "alice", "associate", "Q2", false)
	require.NoError(t, err)
	assert.False(t, resp.Review)
	assert.Equal(t, "B", resp.Choice)
}

func TestTickMonotonic(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	now := base
	svc.now = func() time.Time { return now }

	_, err := svc.Start(ctx, "alice", "associate", false)
	require.NoError(t, err)

	now = base.Add(3 * time.Second)
	elapsed, err := svc.Tick(ctx, "alice", "associate")
	require.NoError(t, err)
	assert.Equal(t, int64(3), elapsed)

	now = base.Add(7500 * time.Millisecond)
	elapsed, err = svc.Tick(ctx, "alice", "associate")
	require.NoError(t, err)
	assert.Equal(t, int64(7), elapsed)

	// Clock skew: a non-positive delta is a no-op, never a decrease.
	now = base.Add(2 * time.Second)
	elapsed, err = svc.Tick(ctx, "alice", "associate")
	require.NoError(t, err)
	assert.Equal(t, int64(7), elapsed)
}

func TestFinishIdempotentAndLocksMutations(t *testing.T) {
	st := newMemStore()
	svc := newTestService(t, st)
	ctx := context.Background()

	_, err := svc.Start(ctx, "alice", "associate", false)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "alice", "associate", "Q1", "A")
	require.NoError(t, err)

	session, err := svc.Finish(ctx, "alice", "associate")
	require.NoError(t, err)
	assert.True(t, session.Completed)

	putsAfterFinish := st.puts
	again, err := svc.Finish(ctx, "alice", "associate")
	require.NoError(t, err)
	assert.True(t, again.Completed)
	assert.Equal(t, putsAfterFinish, st.puts, "second finish should not persist again")

	_, err = svc.Submit(ctx, "alice", "associate", "Q2", "B")
	assert.ErrorIs(t, err, ErrSessionCompleted)

	_, err = svc.ToggleReview(ctx, "alice", "associate", "Q2", true)
	assert.ErrorIs(t, err, ErrSessionCompleted)

	// Ticks stop accumulating once the session is completed.
	elapsedBefore := session.ElapsedSeconds
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	elapsed, err := svc.Tick(ctx, "alice", "associate")
	require.NoError(t, err)
	assert.Equal(t, elapsedBefore, elapsed)
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "00:00:00", formatElapsed(0))
	assert.Equal(t, "00:01:05", formatElapsed(65))
	assert.Equal(t, "01:00:59", formatElapsed(3659))
	assert.Equal(t, "27:46:40", formatElapsed(100000))
}

func TestAliceScenario(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()

	session, err := svc.Start(ctx, "alice", "mini", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1", "Q2"}, session.QuestionOrder)

	_, err = svc.Submit(ctx, "alice", "mini", "Q1", "A")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "alice", "mini", "Q2", "C")
	require.NoError(t, err)

	report, err := svc.Summary(ctx, "alice", "mini")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Summary.Attempted)
	assert.Equal(t, 1, report.Summary.Correct)
	assert.Equal(t, 1, report.Summary.Incorrect)
	assert.Equal(t, 50.0, report.Summary.Percent)
}

func TestResumeRestoresSavedSession(t *testing.T) {
	st := newMemStore()
	svc := newTestService(t, st)
	ctx := context.Background()

	started, err := svc.Start(ctx, "alice", "associate", false)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "alice", "associate", "Q1", "A")
	require.NoError(t, err)

	// A new service over the same store simulates a process restart.
	restarted := NewSessionService(svc.loader, st, zerolog.Nop())
	resumed, err := restarted.Resume(ctx, "alice", "associate")
	require.NoError(t, err)

	assert.Equal(t, started.QuestionOrder, resumed.QuestionOrder)
	assert.Equal(t, "A", resumed.Responses["Q1"].Choice)
	require.NotNil(t, resumed.Responses["Q1"].Correct)
	assert.True(t, *resumed.Responses["Q1"].Correct)
}

func TestResumeWithoutSavedSession(t *testing.T) {
	svc := newTestService(t, newMemStore())

	_, err := svc.Resume(context.Background(), "nobody", "associate")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestQuestionHidesAnswerKeyUntilSubmitted(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()

	_, err := svc.Start(ctx, "alice", "associate", false)
	require.NoError(t, err)

	view, err := svc.Question(ctx, "alice", "associate", 0)
	require.NoError(t, err)
	assert.Empty(t, view.CorrectAnswer)
	assert.Nil(t, view.Explanation)

	_, err = svc.Submit(ctx, "alice", "associate", view.QuestionID, "A")
	require.NoError(t, err)

	view, err = svc.Question(ctx, "alice", "associate", 0)
	require.NoError(t, err)
	assert.Equal(t, "A", view.CorrectAnswer)
	require.NotNil(t, view.Explanation)
	assert.NotEmpty(t, view.Explanation.Correct)

	_, err = svc.Question(ctx, "alice", "associate", 99)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestFeedbackCoversEveryQuestion(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()

	_, err := svc.Start(ctx, "alice", "associate", true)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "alice", "associate", "Q1", "B")
	require.NoError(t, err)
	_, err = svc.Finish(ctx, "alice", "associate")
	require.NoError(t, err)

	report, err := svc.Feedback(ctx, "alice", "associate")
	require.NoError(t, err)

	assert.Len(t, report.Items, 3)
	for _, item := range report.Items {
		assert.NotEmpty(t, item.CorrectAnswer)
		assert.NotEmpty(t, item.Explanation.Correct)
	}
	assert.Equal(t, 1, report.Summary.Attempted)
	assert.Equal(t, 0, report.Summary.Correct)
}

func TestPersistFailureKeepsSessionValid(t *testing.T) {
	st := newMemStore()
	svc := newTestService(t, st)
	ctx := context.Background()

	_, err := svc.Start(ctx, "alice", "associate", false)
	require.NoError(t, err)

	st.putErr = errors.New("disk full")
	result, err := svc.Submit(ctx, "alice", "associate", "Q1", "A")
	assert.ErrorIs(t, err, ErrStoreWrite)
	require.NotNil(t, result)
	assert.Equal(t, "A", result.Response.Choice)

	// The in-memory session kept the answer even though the write failed.
	st.putErr = nil
	report, err := svc.Summary(ctx, "alice", "associate")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.Attempted)
}
