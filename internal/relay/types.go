package relay

import (
	"errors"
	"time"
)

// Wire event names.
const (
	EventWelcome        = "welcome"
	EventJoinRoom       = "join-room"
	EventLeaveRoom      = "leave-room"
	EventMessage        = "message"
	EventReceiveMessage = "receive-message"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrInvalidRoom       = errors.New("invalid room name")
)

// ConnID identifies one live connection.
type ConnID string

// Event is what the relay hands to a Sink: a name plus a payload the
// transport knows how to encode.
type Event struct {
	Name    string
	Payload any
}

// Sink is the outbound handle of a connection.
//
// Push must never block: it either queues the event or refuses it, and it
// must be safe to call after Close (returning false).
type Sink interface {
	Push(ev Event) bool
	Close()
}

type LifecycleKind string

const (
	Opened LifecycleKind = "opened"
	Joined LifecycleKind = "joined"
	Left   LifecycleKind = "left"
	Closed LifecycleKind = "closed"
)

// Lifecycle describes one registry/router state transition.
// Room is set for Joined and Left, Rooms for Closed.
type Lifecycle struct {
	Kind  LifecycleKind
	Conn  ConnID
	Room  string
	Rooms []string
	At    time.Time
}

// Observer receives lifecycle hooks. Observe is called with the relay lock
// held: it must not block and must not call back into the relay.
type Observer interface {
	Observe(ev Lifecycle)
}

// RoomInfo is a point-in-time view of one room.
type RoomInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// Stats are cumulative delivery counters plus current sizes.
type Stats struct {
	Connections int   `json:"connections"`
	Rooms       int   `json:"rooms"`
	Delivered   int64 `json:"delivered"`
	Dropped     int64 `json:"dropped"`
}
