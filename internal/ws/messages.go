package ws

import "encoding/json"

const EventError = "error"

// Envelope wraps every inbound WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "join-room"
	Body  json.RawMessage `json:"body,omitempty"` // string or object, per event
}

// outbound mirrors Envelope with an already-typed body.
type outbound struct {
	Event string `json:"event"`
	Body  any    `json:"body,omitempty"`
}

// ──────────────────────────── Request / Response DTOs ─────────────────────────

// MessageRequest is the body for "message".
type MessageRequest struct {
	Message string `json:"message" validate:"required"`
	Room    string `json:"room"    validate:"required,max=128"`
}

// ErrorBody is returned for rejected frames.
type ErrorBody struct {
	Error string `json:"error"`
}

func encodeFrame(event string, body any) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Body: body})
}
