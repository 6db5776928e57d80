package relay

import (
	"fmt"
	"sort"
)

// Registry owns the set of live connections.
type Registry struct {
	s *state
}

func welcomeText(id ConnID) string { return fmt.Sprintf("welcome to the server %s", id) }
func announceText(id ConnID) string { return fmt.Sprintf("%s joined the server", id) }

// Connect registers sink under a fresh id, greets it and announces it to
// every other connection.
func (g *Registry) Connect(sink Sink) ConnID {
	s := g.s
	s.mu.Lock()
	var id ConnID
	for {
		id = s.newID()
		if _, taken := s.conns[id]; !taken {
			break
		}
	}
	s.conns[id] = &connection{id: id, sink: sink, rooms: make(map[string]struct{})}
	s.emit(Lifecycle{Kind: Opened, Conn: id})

	// The greeting is queued before the id becomes visible to other
	// goroutines, so it is always the first frame the client sees.
	s.deliver([]Sink{sink}, Event{Name: EventWelcome, Payload: welcomeText(id)})
	others := s.sinksExceptLocked(id)
	s.mu.Unlock()

	s.deliver(others, Event{Name: EventWelcome, Payload: announceText(id)})
	return id
}

// Disconnect removes id and all its memberships. Unknown or already removed
// ids are ignored.
func (g *Registry) Disconnect(id ConnID) {
	s := g.s
	s.mu.Lock()
	c, ok := s.conns[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	left := s.cleanupLocked(c)
	delete(s.conns, id)
	s.emit(Lifecycle{Kind: Closed, Conn: id, Rooms: left})
	s.mu.Unlock()

	c.sink.Close()
}

// Send delivers one event to id. It reports false when id is gone or its
// sink refused the event.
func (g *Registry) Send(id ConnID, event string, payload any) bool {
	s := g.s
	s.mu.RLock()
	c, ok := s.conns[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return s.deliver([]Sink{c.sink}, Event{Name: event, Payload: payload}) == 1
}

// BroadcastExcept delivers to every connection but id and returns the
// number of accepted deliveries.
func (g *Registry) BroadcastExcept(id ConnID, event string, payload any) int {
	s := g.s
	s.mu.RLock()
	sinks := s.sinksExceptLocked(id)
	s.mu.RUnlock()
	return s.deliver(sinks, Event{Name: event, Payload: payload})
}

func (g *Registry) Has(id ConnID) bool {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	_, ok := g.s.conns[id]
	return ok
}

func (g *Registry) Len() int {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	return len(g.s.conns)
}

// IDs returns the live ids in lexical order.
func (g *Registry) IDs() []ConnID {
	g.s.mu.RLock()
	ids := make([]ConnID, 0, len(g.s.conns))
	for id := range g.s.conns {
		ids = append(ids, id)
	}
	g.s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Close disconnects every live connection.
func (g *Registry) Close() {
	for _, id := range g.IDs() {
		g.Disconnect(id)
	}
}

func (s *state) sinksExceptLocked(id ConnID) []Sink {
	sinks := make([]Sink, 0, len(s.conns))
	for cid, c := range s.conns {
		if cid == id {
			continue
		}
		sinks = append(sinks, c.sink)
	}
	return sinks
}
