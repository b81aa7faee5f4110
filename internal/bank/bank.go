package bank

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/barathRC/databricks-mcq-copilot-agent/internal/model"
	"github.com/rs/zerolog"
)

// Domain Errors
var (
	ErrNotFound = errors.New("question bank not found")
	ErrParse    = errors.New("question bank is malformed")
)

// Loader loads and caches question banks per exam code.
//
// Banks live either in one file per exam code (BANK_DIR/question_bank_<code>.json)
// or in a single shared file whose records carry the exam code in their
// difficulty field. A loaded bank is immutable, so it is memoized for the
// process lifetime.
type Loader struct {
	dir        string
	sharedFile string
	catalog    map[string]string // exam code -> label

	mu    sync.Mutex
	cache map[string]map[string]model.QuestionRecord

	log zerolog.Logger
}

// NewLoader creates a Loader rooted at dir. sharedFile may be empty; catalog
// maps exam codes to display labels.
func NewLoader(dir, sharedFile string, catalog map[string]string, log zerolog.Logger) *Loader {
	return &Loader{
		dir:        dir,
		sharedFile: sharedFile,
		catalog:    catalog,
		cache:      make(map[string]map[string]model.QuestionRecord),
		log:        log.With().Str("component", "bank_loader").Logger(),
	}
}

// Label returns the display label for an exam code, falling back to the code
// itself when the catalog has no entry.
func (l *Loader) Label(examCode string) string {
	if label, ok := l.catalog[examCode]; ok {
		return label
	}
	return examCode
}

// Codes returns the configured exam codes in ascending order.
func (l *Loader) Codes() []string {
	codes := make([]string, 0, len(l.catalog))
	for code := range l.catalog {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Catalog lists the configured exams with their question counts. An exam whose
// bank is missing or broken is still listed, with a zero count, so the caller
// can render the full selector.
func (l *Loader) Catalog() []model.ExamInfo {
	infos := make([]model.ExamInfo, 0, len(l.catalog))
	for _, code := range l.Codes() {
		info := model.ExamInfo{ExamCode: code, ExamLabel: l.Label(code)}
		if questions, err := l.Load(code); err == nil {
			info.QuestionCount = len(questions)
		}
		infos = append(infos, info)
	}
	return infos
}

// Load returns the question bank for an exam code, keyed by question ID.
// The returned map is shared across callers and must not be mutated.
func (l *Loader) Load(examCode string) (map[string]model.QuestionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cached, ok := l.cache[examCode]; ok {
		return cached, nil
	}

	records, err := l.read(examCode)
	if err != nil {
		return nil, err
	}

	questions := make(map[string]model.QuestionRecord, len(records))
	for _, q := range records {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrParse, l.source(examCode), err)
		}
		if missing := q.MissingExplanations(); len(missing) > 0 {
			l.log.Warn().
				Str("exam_code", examCode).
				Str("question_id", q.QuestionID).
				Strs("choices", missing).
				Msg("Question has choices without explanations")
		}
		// Duplicate IDs resolve last-write-wins but are flagged: the source
		// data repeating an ID silently shrinks the exam.
		if _, dup := questions[q.QuestionID]; dup {
			l.log.Warn().
				Str("exam_code", examCode).
				Str("question_id", q.QuestionID).
				Msg("Duplicate question_id in bank, keeping last occurrence")
		}
		questions[q.QuestionID] = q
	}

	l.cache[examCode] = questions
	l.log.Info().
		Str("exam_code", examCode).
		Int("questions", len(questions)).
		Msg("Question bank loaded")

	return questions, nil
}

// read resolves the backing file for an exam code and decodes its records.
func (l *Loader) read(examCode string) ([]model.QuestionRecord, error) {
	path := filepath.Join(l.dir, fmt.Sprintf("question_bank_%s.json", examCode))

	data, err := os.ReadFile(path)
	if err == nil {
		var records []model.QuestionRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
		}
		return records, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}

	// No per-code file. Fall back to the shared bank filtered by difficulty.
	if l.sharedFile == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	data, err = os.ReadFile(l.sharedFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, l.sharedFile)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, l.sharedFile, err)
	}

	var all []model.QuestionRecord
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, l.sharedFile, err)
	}

	var records []model.QuestionRecord
	for _, q := range all {
		if q.Difficulty == examCode {
			records = append(records, q)
		}
	}
	return records, nil
}

// source names the file a bank for examCode was read from, for error messages.
func (l *Loader) source(examCode string) string {
	path := filepath.Join(l.dir, fmt.Sprintf("question_bank_%s.json", examCode))
	if _, err := os.Stat(path); err == nil || l.sharedFile == "" {
		return path
	}
	return l.sharedFile
}
