package ws

import (
	"context"
	"strings"
	"sync"
	"time"

	"roomrelay/internal/relay"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Options struct {
	AllowedOrigins []string
	MaxMessageSize int64
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
}

type WsServer struct {
	relay    *relay.Relay
	mux      *Mux
	upgrader websocket.Upgrader
	pump     pumpConfig
	validate *validator.Validate
	wg       sync.WaitGroup
}

func (o Options) withDefaults() Options {
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	return o
}

func NewWsServer(rl *relay.Relay, opts Options) *WsServer {
	opts = opts.withDefaults()
	policy := newOriginPolicy(opts.AllowedOrigins)
	srv := &WsServer{
		relay: rl,
		mux:   NewMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
		pump: pumpConfig{
			maxMessageSize: opts.MaxMessageSize,
			sendBuffer:     opts.SendBuffer,
			writeWait:      opts.WriteWait,
			pongWait:       opts.PongWait,
			pingPeriod:     opts.PingPeriod,
		},
		validate: validator.New(),
	}
	srv.registerHandlers() // ← all WS events configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		// the upgrader has already answered with an HTTP error
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}

	c := newClient(rawConn, ginCtx.Request.RemoteAddr, s.pump)
	c.id = s.relay.Connect(c)
	zap.L().Info("ws.connected", zap.String("conn", string(c.id)), zap.String("addr", c.addr))

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		c.writePump()
	}()
	go func() {
		defer s.wg.Done()
		c.readPump(s.relay, s.mux)
		zap.L().Info("ws.disconnected", zap.String("conn", string(c.id)))
	}()
}

// Shutdown disconnects every client and waits for their pumps to exit.
func (s *WsServer) Shutdown(ctx context.Context) error {
	s.relay.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// 🔹 join-room ------------------------------------------------------------
	Register(s.mux, relay.EventJoinRoom,
		func(ctx context.Context, cc *ConnContext, room string) error {
			if err := s.checkRoom(room); err != nil {
				return err
			}
			return cc.Relay.Join(cc.ID, room)
		},
	)

	// 🔹 leave-room -----------------------------------------------------------
	Register(s.mux, relay.EventLeaveRoom,
		func(ctx context.Context, cc *ConnContext, room string) error {
			if err := s.checkRoom(room); err != nil {
				return err
			}
			cc.Relay.Leave(cc.ID, room)
			return nil
		},
	)

	// 🔹 message --------------------------------------------------------------
	Register(s.mux, relay.EventMessage,
		func(ctx context.Context, cc *ConnContext, req MessageRequest) error {
			n := cc.Relay.RouteToRoom(cc.ID, req.Room, req.Message)
			zap.L().Debug("ws.message",
				zap.String("conn", string(cc.ID)),
				zap.String("room", req.Room),
				zap.Int("recipients", n),
			)
			return nil
		},
	)
}

func (s *WsServer) checkRoom(room string) error {
	if strings.TrimSpace(room) == "" {
		return relay.ErrInvalidRoom
	}
	if err := s.validate.Var(room, "max=128"); err != nil {
		return relay.ErrInvalidRoom
	}
	return nil
}
