package audit

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"roomrelay/internal/relay"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var insertRe = regexp.QuoteMeta(insertEvent)

func at() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

func TestWriterFlushesWhenBatchIsFull(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	w := NewWriter(db, 2, time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(insertRe).WithArgs("c1", "opened", "", at()).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insertRe).WithArgs("c1", "joined", "lobby", at()).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	require.NoError(t, w.Handle(ctx, relay.Lifecycle{Kind: relay.Opened, Conn: "c1", At: at()}))
	assert.Equal(t, 1, w.Pending())
	require.NoError(t, w.Handle(ctx, relay.Lifecycle{Kind: relay.Joined, Conn: "c1", Room: "lobby", At: at()}))

	assert.Zero(t, w.Pending())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriterKeepsRowsOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	w := NewWriter(db, 10, time.Hour)
	ctx := context.Background()
	require.NoError(t, w.Handle(ctx, relay.Lifecycle{Kind: relay.Closed, Conn: "c1", Rooms: []string{"x"}, At: at()}))

	mock.ExpectBegin()
	mock.ExpectExec(insertRe).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	assert.ErrorContains(t, w.Flush(ctx), "connection reset")
	assert.Equal(t, 1, w.Pending())

	mock.ExpectBegin()
	mock.ExpectExec(insertRe).WithArgs("c1", "closed", "", at()).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, w.Flush(ctx))
	assert.Zero(t, w.Pending())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriterRunFlushesOnShutdown(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	w := NewWriter(db, 100, time.Hour)
	require.NoError(t, w.Handle(context.Background(), relay.Lifecycle{Kind: relay.Opened, Conn: "c7", At: at()}))

	mock.ExpectBegin()
	mock.ExpectExec(insertRe).WithArgs("c7", "opened", "", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	assert.Zero(t, w.Pending())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFlushWithNothingPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, NewWriter(db, 10, time.Second).Flush(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
