package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/barathRC/databricks-mcq-copilot-agent/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps one row per (username, exam_code) with the session as
// JSONB. The UPSERT makes each Put atomic per key, which is the hardening the
// whole-blob file driver cannot offer under concurrent writers.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore on an existing pool. The schema is
// managed by cmd/migrate.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get returns the saved session for (username, examCode), or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, username, examCode string) (*model.Session, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT session FROM exam_sessions
		 WHERE username = $1 AND exam_code = $2`, username, examCode,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// Put overwrites the session stored for (username, examCode).
func (s *PostgresStore) Put(ctx context.Context, username, examCode string, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO exam_sessions (username, exam_code, session)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (username, exam_code) DO UPDATE
		 SET session = EXCLUDED.session, updated_at = NOW()`,
		username, examCode, data,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}
