package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"roomrelay/internal/relay"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	ErrUnknownEvent = errors.New("unknown_event")
	ErrInvalidBody  = errors.New("invalid_body")
	ErrInternal     = errors.New("internal_error")
)

// ConnContext is what every handler gets besides its typed request.
type ConnContext struct {
	ID    relay.ConnID
	Relay *relay.Relay
}

// internal (untyped) handler signature.
type rawHandler func(ctx context.Context, c *ConnContext, body json.RawMessage) error

// Mux keeps a map[event]handler, à‑la gin.Engine.
type Mux struct {
	mu       sync.RWMutex
	handlers map[string]rawHandler
	validate *validator.Validate
}

func NewMux() *Mux {
	return &Mux{
		handlers: make(map[string]rawHandler),
		validate: validator.New(),
	}
}

// Register binds an event to a strongly‑typed handler. Struct bodies are
// validated before the handler runs.
func Register[Req any](
	m *Mux,
	event string,
	h func(ctx context.Context, c *ConnContext, req Req) error,
) {
	if event == "" {
		panic("ws mux: empty event")
	}

	isStruct := reflect.TypeFor[Req]().Kind() == reflect.Struct

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[event] = func(ctx context.Context, c *ConnContext, body json.RawMessage) error {
		var req Req
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidBody, err)
			}
		}
		if isStruct {
			if err := m.validate.Struct(req); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidBody, err)
			}
		}
		return h(ctx, c, req)
	}
}

// dispatch is called by the reader loop. A panicking handler is reported as
// ErrInternal; the connection survives.
func (m *Mux) dispatch(ctx context.Context, c *ConnContext, env Envelope) (err error) {
	m.mu.RLock()
	h, ok := m.handlers[env.Event]
	m.mu.RUnlock()
	if !ok {
		return ErrUnknownEvent
	}

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("ws.handler_panic",
				zap.String("event", env.Event),
				zap.String("conn", string(c.ID)),
				zap.Any("panic", r),
			)
			err = ErrInternal
		}
	}()
	return h(ctx, c, env.Body)
}
