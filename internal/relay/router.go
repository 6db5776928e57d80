package relay

import (
	"sort"
	"strings"
)

// Router owns room membership and the routing primitives.
type Router struct {
	s *state
}

// Join adds id to room, creating the room on first use. Joining twice is a
// no-op.
func (rt *Router) Join(id ConnID, room string) error {
	if strings.TrimSpace(room) == "" {
		return ErrInvalidRoom
	}
	s := rt.s
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	if _, member := c.rooms[room]; member {
		return nil
	}
	members, ok := s.rooms[room]
	if !ok {
		members = make(map[ConnID]struct{})
		s.rooms[room] = members
	}
	members[id] = struct{}{}
	c.rooms[room] = struct{}{}
	s.emit(Lifecycle{Kind: Joined, Conn: id, Room: room})
	return nil
}

// Leave removes a single membership. Unknown ids and rooms are ignored.
func (rt *Router) Leave(id ConnID, room string) {
	s := rt.s
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conns[id]
	if !ok {
		return
	}
	if _, member := c.rooms[room]; !member {
		return
	}
	s.removeMemberLocked(c, room)
	s.emit(Lifecycle{Kind: Left, Conn: id, Room: room})
}

// RouteToRoom sends payload as receive-message to every member of room
// except sender. The sender does not have to be a member.
func (rt *Router) RouteToRoom(sender ConnID, room string, payload string) int {
	s := rt.s
	s.mu.RLock()
	members := s.rooms[room]
	sinks := make([]Sink, 0, len(members))
	for id := range members {
		if id == sender {
			continue
		}
		if c, ok := s.conns[id]; ok {
			sinks = append(sinks, c.sink)
		}
	}
	s.mu.RUnlock()
	return s.deliver(sinks, Event{Name: EventReceiveMessage, Payload: payload})
}

// RouteGlobal sends payload as welcome to every connection except sender,
// ignoring rooms.
func (rt *Router) RouteGlobal(sender ConnID, payload string) int {
	s := rt.s
	s.mu.RLock()
	sinks := s.sinksExceptLocked(sender)
	s.mu.RUnlock()
	return s.deliver(sinks, Event{Name: EventWelcome, Payload: payload})
}

// CleanupConnection drops id from every room it belongs to.
func (rt *Router) CleanupConnection(id ConnID) {
	s := rt.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conns[id]; ok {
		for _, room := range s.cleanupLocked(c) {
			s.emit(Lifecycle{Kind: Left, Conn: id, Room: room})
		}
	}
}

// Members returns the ids in room, sorted. nil when the room does not exist.
func (rt *Router) Members(room string) []ConnID {
	s := rt.s
	s.mu.RLock()
	members, ok := s.rooms[room]
	if !ok {
		s.mu.RUnlock()
		return nil
	}
	ids := make([]ConnID, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RoomsOf returns the rooms id belongs to, sorted, and whether id is live.
func (rt *Router) RoomsOf(id ConnID) ([]string, bool) {
	s := rt.s
	s.mu.RLock()
	c, ok := s.conns[id]
	if !ok {
		s.mu.RUnlock()
		return nil, false
	}
	rooms := sortedKeys(c.rooms)
	s.mu.RUnlock()
	return rooms, true
}

// Rooms lists every non-empty room with its size, sorted by name.
func (rt *Router) Rooms() []RoomInfo {
	s := rt.s
	s.mu.RLock()
	out := make([]RoomInfo, 0, len(s.rooms))
	for name, members := range s.rooms {
		out = append(out, RoomInfo{Name: name, Members: len(members)})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// cleanupLocked removes c from all its rooms and returns their names.
func (s *state) cleanupLocked(c *connection) []string {
	left := sortedKeys(c.rooms)
	for _, room := range left {
		s.removeMemberLocked(c, room)
	}
	return left
}

func (s *state) removeMemberLocked(c *connection, room string) {
	delete(c.rooms, room)
	if members, ok := s.rooms[room]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(s.rooms, room)
		}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
