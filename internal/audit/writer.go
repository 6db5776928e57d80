// Package audit records connection lifecycle (open, join, leave, close) to
// Postgres in small batches. Message text is never written.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"roomrelay/internal/lifecycle"
	"roomrelay/internal/relay"

	"go.uber.org/zap"
)

// Rows kept across failed flushes, in batches; older rows are discarded first.
const maxBacklogBatches = 10

const insertEvent = `INSERT INTO session_events (conn_id, kind, room, at) VALUES ($1, $2, $3, $4)`

type row struct {
	conn string
	kind string
	room string
	at   time.Time
}

// Writer buffers lifecycle rows and flushes them in one transaction once
// batchSize rows are pending, or on every tick of Run.
type Writer struct {
	db            *sql.DB
	batchSize     int
	flushInterval time.Duration

	mu      sync.Mutex
	pending []row
}

var _ lifecycle.Handler = (*Writer)(nil)

func NewWriter(db *sql.DB, batchSize int, flushInterval time.Duration) *Writer {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	return &Writer{
		db:            db,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		pending:       make([]row, 0, batchSize),
	}
}

func (w *Writer) Handle(ctx context.Context, ev relay.Lifecycle) error {
	w.mu.Lock()
	w.pending = append(w.pending, row{
		conn: string(ev.Conn),
		kind: string(ev.Kind),
		room: ev.Room,
		at:   ev.At.UTC(),
	})
	full := len(w.pending) >= w.batchSize
	w.mu.Unlock()

	if full {
		return w.Flush(ctx)
	}
	return nil
}

// Run flushes every flushInterval until ctx is done, then once more with a
// short detached deadline.
func (w *Writer) Run(ctx context.Context) {
	tk := time.NewTicker(w.flushInterval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := w.Flush(final); err != nil {
				zap.L().Error("audit.final_flush", zap.Error(err))
			}
			cancel()
			return
		case <-tk.C:
			if err := w.Flush(ctx); err != nil {
				zap.L().Warn("audit.flush", zap.Error(err))
			}
		}
	}
}

// Flush writes all pending rows. On failure the rows are put back in front
// of anything buffered meanwhile, so the next flush retries them.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	batch := w.pending
	w.pending = make([]row, 0, w.batchSize)
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := w.persist(ctx, batch); err != nil {
		w.mu.Lock()
		w.pending = append(batch, w.pending...)
		if over := len(w.pending) - w.batchSize*maxBacklogBatches; over > 0 {
			w.pending = w.pending[over:]
			zap.L().Warn("audit.backlog_trimmed", zap.Int("dropped", over))
		}
		w.mu.Unlock()
		return err
	}
	zap.L().Debug("audit.flushed", zap.Int("rows", len(batch)))
	return nil
}

func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Writer) persist(ctx context.Context, batch []row) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("audit begin: %w", err)
	}
	defer tx.Rollback()

	for _, r := range batch {
		if _, err := tx.ExecContext(ctx, insertEvent, r.conn, r.kind, r.room, r.at); err != nil {
			return fmt.Errorf("audit insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("audit commit: %w", err)
	}
	return nil
}
