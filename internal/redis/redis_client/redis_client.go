package redis_client

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient connects and pings. The pool is sized for one writer
// goroutine plus the occasional boot-time scan, so it stays small.
func NewRedisClient(ctx context.Context, host string, port int, db int) (*redis.Client, error) {
	pool := runtime.NumCPU() * 2
	if pool > 32 {
		pool = 32
	}

	rc := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		DB:       db,
		PoolSize: pool,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		_ = rc.Close()
		err = fmt.Errorf("redis connection failed: %w", err)
		zap.L().Error("redis_connect", zap.Error(err))
		return nil, err
	}
	return rc, nil
}
