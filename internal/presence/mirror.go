// Package presence mirrors live connections and room membership into Redis
// so external tooling can inspect who is online without talking to the
// relay process.
package presence

import (
	"context"
	"fmt"

	"roomrelay/internal/lifecycle"
	"roomrelay/internal/relay"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const scanCount = 100

// Mirror applies lifecycle events as Redis set operations:
//
//	<prefix>:conns             ids of live connections
//	<prefix>:room:<name>       ids in a room
//	<prefix>:conn:<id>:rooms   rooms of a connection
type Mirror struct {
	rdb    *redis.Client
	prefix string
}

var _ lifecycle.Handler = (*Mirror)(nil)

func NewMirror(rdb *redis.Client, prefix string) *Mirror {
	if prefix == "" {
		prefix = "relay"
	}
	return &Mirror{rdb: rdb, prefix: prefix}
}

func (m *Mirror) connsKey() string           { return m.prefix + ":conns" }
func (m *Mirror) roomKey(room string) string { return m.prefix + ":room:" + room }

func (m *Mirror) connRoomsKey(id relay.ConnID) string {
	return m.prefix + ":conn:" + string(id) + ":rooms"
}

// Handle applies one event atomically (MULTI/EXEC).
func (m *Mirror) Handle(ctx context.Context, ev relay.Lifecycle) error {
	id := string(ev.Conn)
	var apply func(p redis.Pipeliner)
	switch ev.Kind {
	case relay.Opened:
		apply = func(p redis.Pipeliner) {
			p.SAdd(ctx, m.connsKey(), id)
		}
	case relay.Joined:
		apply = func(p redis.Pipeliner) {
			p.SAdd(ctx, m.roomKey(ev.Room), id)
			p.SAdd(ctx, m.connRoomsKey(ev.Conn), ev.Room)
		}
	case relay.Left:
		apply = func(p redis.Pipeliner) {
			p.SRem(ctx, m.roomKey(ev.Room), id)
			p.SRem(ctx, m.connRoomsKey(ev.Conn), ev.Room)
		}
	case relay.Closed:
		apply = func(p redis.Pipeliner) {
			p.SRem(ctx, m.connsKey(), id)
			for _, room := range ev.Rooms {
				p.SRem(ctx, m.roomKey(room), id)
			}
			p.Del(ctx, m.connRoomsKey(ev.Conn))
		}
	default:
		return nil
	}

	_, err := m.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		apply(p)
		return nil
	})
	if err != nil {
		return fmt.Errorf("presence %s %s: %w", ev.Kind, id, err)
	}
	return nil
}

// Reset deletes every key under the prefix. Called once at boot: the mirror
// only ever reflects the current process.
func (m *Mirror) Reset(ctx context.Context) error {
	var (
		cursor  uint64
		removed int64
	)
	for {
		keys, next, err := m.rdb.Scan(ctx, cursor, m.prefix+":*", scanCount).Result()
		if err != nil {
			return fmt.Errorf("presence scan: %w", err)
		}
		if len(keys) > 0 {
			n, err := m.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("presence del: %w", err)
			}
			removed += n
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	zap.L().Info("presence.reset", zap.String("prefix", m.prefix), zap.Int64("keys", removed))
	return nil
}
