package db_client

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const pingTimeout = 5 * time.Second

func Open(ctx context.Context, host, port, user, pass, database string) (*sql.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		user, pass, host, port, database,
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS session_events (
    id      BIGSERIAL PRIMARY KEY,
    conn_id TEXT        NOT NULL,
    kind    TEXT        NOT NULL,
    room    TEXT        NOT NULL DEFAULT '',
    at      TIMESTAMPTZ NOT NULL
)`

const schemaIndex = `CREATE INDEX IF NOT EXISTS session_events_conn_idx ON session_events (conn_id, at)`

// EnsureSchema creates the audit table when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range []string{schema, schemaIndex} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
