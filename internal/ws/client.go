package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"roomrelay/internal/relay"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const handlerTimeout = 1900 * time.Millisecond

type pumpConfig struct {
	maxMessageSize int64
	sendBuffer     int
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
}

// client is the relay.Sink of one websocket connection. Frames are encoded
// on Push and queued; writePump owns all writes to rawConn.
type client struct {
	id      relay.ConnID
	addr    string
	rawConn *websocket.Conn
	cfg     pumpConfig

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

var _ relay.Sink = (*client)(nil)

func newClient(conn *websocket.Conn, addr string, cfg pumpConfig) *client {
	return &client{
		addr:    addr,
		rawConn: conn,
		cfg:     cfg,
		send:    make(chan []byte, cfg.sendBuffer),
	}
}

// Push queues ev; a full buffer or a closed client drops it.
func (c *client) Push(ev relay.Event) bool {
	frame, err := encodeFrame(ev.Name, ev.Payload)
	if err != nil {
		zap.L().Warn("ws.encode", zap.String("event", ev.Name), zap.Error(err))
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		zap.L().Debug("ws.send_buffer_full", zap.String("addr", c.addr))
		return false
	}
}

// Close stops the writer after it has flushed what is queued.
func (c *client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) reject(event string, err error) {
	c.Push(relay.Event{Name: EventError, Payload: ErrorBody{Error: err.Error()}})
	zap.L().Debug("ws.rejected",
		zap.String("conn", string(c.id)),
		zap.String("event", event),
		zap.Error(err),
	)
}

// readPump processes this connection's frames one at a time, in arrival
// order, and disconnects from the relay when the socket goes away.
func (c *client) readPump(rl *relay.Relay, mux *Mux) {
	defer func() {
		rl.Disconnect(c.id)
		_ = c.rawConn.Close()
	}()

	c.rawConn.SetReadLimit(c.cfg.maxMessageSize)
	_ = c.rawConn.SetReadDeadline(time.Now().Add(c.cfg.pongWait))
	c.rawConn.SetPongHandler(func(string) error {
		return c.rawConn.SetReadDeadline(time.Now().Add(c.cfg.pongWait))
	})

	cc := &ConnContext{ID: c.id, Relay: rl}
	for {
		_, data, err := c.rawConn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.reject("", ErrInvalidBody)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		err = mux.dispatch(ctx, cc, env)
		cancel()
		if err != nil {
			c.reject(env.Event, err)
		}
	}
}

func (c *client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		zap.L().Warn("ws.read_limit", zap.String("conn", string(c.id)), zap.Int64("limit", c.cfg.maxMessageSize))
	case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		zap.L().Info("ws.read", zap.String("conn", string(c.id)), zap.Error(err))
	default:
		zap.L().Debug("ws.closed", zap.String("conn", string(c.id)), zap.Error(err))
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(c.cfg.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.rawConn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.cfg.writeWait))
			if !ok {
				_ = c.rawConn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.rawConn.WriteMessage(websocket.TextMessage, frame); err != nil {
				zap.L().Debug("ws.write", zap.String("conn", string(c.id)), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.cfg.writeWait))
			if err := c.rawConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
