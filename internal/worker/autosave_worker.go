package worker

import (
	"context"
	"time"

	"github.com/barathRC/databricks-mcq-copilot-agent/internal/model"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/store"
	"github.com/rs/zerolog"
)

// DefaultFlushInterval is how often active sessions are re-persisted.
const DefaultFlushInterval = 15 * time.Second

// SnapshotSource yields copies of the sessions currently being worked on.
type SnapshotSource interface {
	ActiveSnapshots() []*model.Session
}

// AutosaveWorker periodically flushes every active session to the durable
// store. Normal operations already persist synchronously; this worker is the
// safety net for presentation layers that skip tick cycles, and it narrows the
// window lost to an unclean shutdown. A failed flush is logged and retried on
// the next interval.
type AutosaveWorker struct {
	source   SnapshotSource
	store    store.Store
	interval time.Duration
	log      zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(source SnapshotSource, st store.Store, interval time.Duration, log zerolog.Logger) *AutosaveWorker {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &AutosaveWorker{
		source:   source,
		store:    st,
		interval: interval,
		log:      log.With().Str("component", "autosave_worker").Logger(),
	}
}

// Start begins the flush loop. Call in a goroutine; the loop exits after one
// final flush when ctx is cancelled.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.flush(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// flush persists every active session snapshot.
func (w *AutosaveWorker) flush(ctx context.Context) {
	snapshots := w.source.ActiveSnapshots()
	if len(snapshots) == 0 {
		return
	}

	saved := 0
	for _, session := range snapshots {
		if err := w.store.Put(ctx, session.Username, session.ExamCode, session); err != nil {
			w.log.Error().Err(err).
				Str("username", session.Username).
				Str("exam_code", session.ExamCode).
				Msg("Autosave flush failed")
			continue
		}
		saved++
	}

	if saved > 0 {
		w.log.Debug().Int("count", saved).Msg("Sessions autosaved")
	}
}
