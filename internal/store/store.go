package store

import (
	"context"
	"errors"

	"github.com/barathRC/databricks-mcq-copilot-agent/internal/model"
)

// ErrNotFound is returned by Get when no session is saved for the key.
var ErrNotFound = errors.New("no saved session")

// Store is the durable mapping from (username, exam code) to a session
// snapshot. Put overwrites the whole value for the key; there is no partial
// update and no concurrency check beyond what a driver provides natively.
type Store interface {
	Get(ctx context.Context, username, examCode string) (*model.Session, error)
	Put(ctx context.Context, username, examCode string, session *model.Session) error
}
