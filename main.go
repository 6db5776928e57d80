package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"roomrelay/internal/audit"
	"roomrelay/internal/config"
	"roomrelay/internal/database/db_client"
	"roomrelay/internal/http/http_server"
	"roomrelay/internal/http/relayhandler"
	"roomrelay/internal/lifecycle"
	"roomrelay/internal/presence"
	"roomrelay/internal/redis/redis_client"
	"roomrelay/internal/relay"
	"roomrelay/internal/ws"

	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// Background consumers outlive ctx: client disconnects emitted during
	// shutdown must still reach them.
	fanoutCtx, stopFanout := context.WithCancel(context.Background())
	defer stopFanout()
	writerCtx, stopWriter := context.WithCancel(context.Background())
	defer stopWriter()

	var (
		handlers   []lifecycle.Handler
		writerDone chan struct{} // nil unless the audit trail runs
	)

	// 3. Redis presence mirror (optional)
	if cfg.PresenceEnabled {
		redisClient, err := redis_client.NewRedisClient(ctx, cfg.RedisHost, int(cfg.RedisPort), cfg.RedisDb)
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		mirror := presence.NewMirror(redisClient, cfg.PresencePrefix)
		if err := mirror.Reset(ctx); err != nil {
			Log.Fatal("presence-reset", zap.Error(err))
		}
		handlers = append(handlers, mirror)
		Log.Debug("Presence mirror enabled")
	}

	// 4. Postgres audit trail (optional)
	if cfg.AuditEnabled {
		pgDb, err := db_client.Open(ctx, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
		if err != nil {
			Log.Fatal("pg-open", zap.Error(err))
		}
		defer pgDb.Close()

		if err := db_client.EnsureSchema(ctx, pgDb); err != nil {
			Log.Fatal("pg-schema", zap.Error(err))
		}

		writer := audit.NewWriter(pgDb, cfg.AuditBatchSize, cfg.AuditFlushInterval)
		handlers = append(handlers, writer)

		writerDone = make(chan struct{})
		go func() {
			defer close(writerDone)
			writer.Run(writerCtx)
		}()
	}

	// 5. Lifecycle fan-out + the relay itself
	fanout := lifecycle.NewFanout(cfg.LifecycleBuffer, handlers...)
	fanoutDone := make(chan struct{})
	go func() {
		defer close(fanoutDone)
		fanout.Run(fanoutCtx)
	}()
	rl := relay.New(relay.WithObserver(fanout))

	// 6. WS server
	wsSrv := ws.NewWsServer(rl, ws.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		MaxMessageSize: cfg.WsMaxMessageSize,
		SendBuffer:     cfg.WsSendBuffer,
		WriteWait:      cfg.WsWriteWait,
		PongWait:       cfg.WsPongWait,
		PingPeriod:     cfg.WsPingPeriod,
	})

	// 7. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, relayhandler.New(rl, fanout.Dropped))
	serveErr := make(chan error, 1)
	go func() { serveErr <- httpServer.Start() }()

	select {
	case <-ctx.Done():
		Log.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			Log.Error("HTTP server stopped", zap.Error(err))
		}
		stop()
	}

	// 8. Drain: HTTP and clients, then the fan-out, then the audit writer
	_ = httpServer.Dispose()
	stopFanout()
	<-fanoutDone
	stopWriter()
	if writerDone != nil {
		<-writerDone
	}
	Log.Info("Shutdown complete")
}
