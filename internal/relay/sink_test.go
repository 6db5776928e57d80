package relay

import (
	"fmt"
	"sync"
	"sync/atomic"
)

type fakeSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
	limit  int // 0 = unbounded
}

func (f *fakeSink) Push(ev Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || (f.limit > 0 && len(f.events) >= f.limit) {
		return false
	}
	f.events = append(f.events, ev)
	return true
}

func (f *fakeSink) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeSink) named(name string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, ev := range f.events {
		if ev.Name == name {
			out = append(out, ev.Payload)
		}
	}
	return out
}

func (f *fakeSink) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type recorder struct {
	mu  sync.Mutex
	evs []Lifecycle
}

func (r *recorder) Observe(ev Lifecycle) {
	r.mu.Lock()
	r.evs = append(r.evs, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds() []LifecycleKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LifecycleKind, 0, len(r.evs))
	for _, ev := range r.evs {
		out = append(out, ev.Kind)
	}
	return out
}

// sequentialIDs yields c1, c2, ...
func sequentialIDs() func() ConnID {
	var n atomic.Int64
	return func() ConnID { return ConnID(fmt.Sprintf("c%d", n.Add(1))) }
}
