package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"roomrelay/internal/http/relayhandler"
	"roomrelay/internal/ws"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type httpServer struct {
	listenPort uint16
	srv        http.Server
	ln         net.Listener
	wsSrv      *ws.WsServer
	api        *relayhandler.Handler
	ctx        context.Context
}

func NewHttpServer(ctx context.Context, listenPort uint16, wsSrv *ws.WsServer, api *relayhandler.Handler) *httpServer {
	h := &httpServer{
		listenPort: listenPort,
		wsSrv:      wsSrv,
		api:        api,
		ctx:        ctx,
	}
	h.srv = http.Server{
		Handler:           h.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return h
}

// Engine builds the gin router: docs, middleware, the websocket endpoint and
// the REST API.
func (h *httpServer) Engine() *gin.Engine {
	routerEngine := gin.New()

	// Swagger UI and API specs
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))
	routerEngine.Static("/api-specs", "api_specs")

	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	// websocket endpoint
	routerEngine.GET("/ws", h.wsSrv.Handle)

	// REST API
	h.api.Register(routerEngine)
	return routerEngine
}

// Start listens and serves until Dispose is called.
func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	zap.L().Info("http_listen", zap.String("addr", listenAddr))

	if err := h.srv.Serve(h.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Dispose stops accepting requests, then disconnects websocket clients.
// It waits up to 10 s in total.
func (h *httpServer) Dispose() error {
	// The parent ctx is already cancelled at shutdown; detach from it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), shutdownTimeout)
	defer cancel()

	httpErr := h.srv.Shutdown(ctx)
	if httpErr != nil {
		zap.L().Error("http_dispose", zap.Error(httpErr))
	}
	wsErr := h.wsSrv.Shutdown(ctx)
	if wsErr != nil {
		zap.L().Error("ws_dispose", zap.Error(wsErr))
	}
	return errors.Join(httpErr, wsErr)
}
