package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/barathRC/databricks-mcq-copilot-agent/internal/model"
	"github.com/rs/zerolog"
)

// FileStore is the baseline driver: one JSON document shaped
// {username: {exam_code: session}} that is read whole, mutated at one leaf and
// rewritten whole on every Put. Safe only for a single process; multi-instance
// deployments should use the Postgres or Redis driver instead.
type FileStore struct {
	path string
	mu   sync.Mutex
	log  zerolog.Logger
}

// NewFileStore creates a FileStore backed by the document at path.
func NewFileStore(path string, log zerolog.Logger) *FileStore {
	return &FileStore{
		path: path,
		log:  log.With().Str("component", "file_store").Logger(),
	}
}

type stateDocument map[string]map[string]*model.Session

// Get returns the saved session for (username, examCode), or ErrNotFound.
func (s *FileStore) Get(ctx context.Context, username, examCode string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.load()
	userBlock, ok := state[username]
	if !ok {
		return nil, ErrNotFound
	}
	session, ok := userBlock[examCode]
	if !ok || session == nil {
		return nil, ErrNotFound
	}
	return session, nil
}

// Put overwrites the session stored for (username, examCode).
func (s *FileStore) Put(ctx context.Context, username, examCode string, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.load()
	userBlock, ok := state[username]
	if !ok {
		userBlock = make(map[string]*model.Session)
		state[username] = userBlock
	}
	userBlock[examCode] = session

	return s.write(state)
}

// load reads the whole document. An absent, unreadable or malformed file is
// treated as an empty store: a fresh session beats surfacing a storage fault.
func (s *FileStore) load() stateDocument {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("State file unreadable, treating as empty")
		}
		return make(stateDocument)
	}

	var state stateDocument
	if err := json.Unmarshal(data, &state); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("State file malformed, treating as empty")
		return make(stateDocument)
	}
	if state == nil {
		state = make(stateDocument)
	}
	return state
}

// write rewrites the whole document through a temp file and rename, so a crash
// mid-write never leaves a truncated state file behind.
func (s *FileStore) write(state stateDocument) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
