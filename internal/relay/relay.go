// Package relay keeps the connection registry and the room router for the
// message relay. Both components share one state object guarded by a single
// mutex so the connection->rooms and room->members sides always move
// together.
package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type connection struct {
	id    ConnID
	sink  Sink
	rooms map[string]struct{}
}

type state struct {
	mu    sync.RWMutex
	conns map[ConnID]*connection
	rooms map[string]map[ConnID]struct{}

	newID    func() ConnID
	now      func() time.Time
	observer Observer

	delivered atomic.Int64
	dropped   atomic.Int64
}

// Relay bundles the Registry and the Router views over the same state.
type Relay struct {
	*Registry
	*Router

	s *state
}

type Option func(*state)

// WithObserver installs the receiver of lifecycle hooks.
func WithObserver(o Observer) Option {
	return func(s *state) { s.observer = o }
}

// WithIDGenerator replaces the UUID generator (tests).
func WithIDGenerator(f func() ConnID) Option {
	return func(s *state) { s.newID = f }
}

func New(opts ...Option) *Relay {
	s := &state{
		conns: make(map[ConnID]*connection),
		rooms: make(map[string]map[ConnID]struct{}),
		newID: func() ConnID { return ConnID(uuid.NewString()) },
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return &Relay{
		Registry: &Registry{s: s},
		Router:   &Router{s: s},
		s:        s,
	}
}

func (r *Relay) Stats() Stats {
	r.s.mu.RLock()
	st := Stats{Connections: len(r.s.conns), Rooms: len(r.s.rooms)}
	r.s.mu.RUnlock()
	st.Delivered = r.s.delivered.Load()
	st.Dropped = r.s.dropped.Load()
	return st
}

// emit must be called with mu held.
func (s *state) emit(ev Lifecycle) {
	if s.observer == nil {
		return
	}
	ev.At = s.now()
	s.observer.Observe(ev)
}

// deliver pushes ev to every sink and returns how many accepted it.
// Called without the lock.
func (s *state) deliver(sinks []Sink, ev Event) int {
	n := 0
	for _, sk := range sinks {
		if sk.Push(ev) {
			n++
		} else {
			s.dropped.Add(1)
		}
	}
	s.delivered.Add(int64(n))
	return n
}
