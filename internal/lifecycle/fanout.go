// Package lifecycle moves relay lifecycle hooks off the relay's critical
// section and hands them, in order, to slower consumers such as the Redis
// presence mirror and the Postgres audit trail.
package lifecycle

import (
	"context"
	"sync/atomic"

	"roomrelay/internal/relay"

	"go.uber.org/zap"
)

// Handler consumes lifecycle events. Handle is called from a single
// goroutine, in the order the relay emitted the events.
type Handler interface {
	Handle(ctx context.Context, ev relay.Lifecycle) error
}

type HandlerFunc func(ctx context.Context, ev relay.Lifecycle) error

func (f HandlerFunc) Handle(ctx context.Context, ev relay.Lifecycle) error { return f(ctx, ev) }

// Fanout is a bounded queue between the relay and the handlers.
type Fanout struct {
	queue    chan relay.Lifecycle
	handlers []Handler
	dropped  atomic.Int64
}

var _ relay.Observer = (*Fanout)(nil)

func NewFanout(size int, handlers ...Handler) *Fanout {
	if size <= 0 {
		size = 1
	}
	return &Fanout{
		queue:    make(chan relay.Lifecycle, size),
		handlers: handlers,
	}
}

// Observe enqueues ev or drops it when the queue is full.
func (f *Fanout) Observe(ev relay.Lifecycle) {
	select {
	case f.queue <- ev:
	default:
		f.dropped.Add(1)
		zap.L().Warn("lifecycle.queue_full",
			zap.String("kind", string(ev.Kind)),
			zap.String("conn", string(ev.Conn)),
		)
	}
}

func (f *Fanout) Dropped() int64 { return f.dropped.Load() }

// Run drains the queue until ctx is cancelled. Events still queued at that
// point are handed to the handlers with a fresh context before Run returns.
func (f *Fanout) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			f.drain()
			return
		case ev := <-f.queue:
			f.dispatch(ctx, ev)
		}
	}
}

func (f *Fanout) drain() {
	ctx := context.Background()
	for {
		select {
		case ev := <-f.queue:
			f.dispatch(ctx, ev)
		default:
			return
		}
	}
}

func (f *Fanout) dispatch(ctx context.Context, ev relay.Lifecycle) {
	for _, h := range f.handlers {
		if err := h.Handle(ctx, ev); err != nil {
			zap.L().Warn("lifecycle.handler_failed",
				zap.String("kind", string(ev.Kind)),
				zap.String("conn", string(ev.Conn)),
				zap.Error(err),
			)
		}
	}
}
