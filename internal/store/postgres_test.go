package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDialect_Errors(t *testing.T) {
	d := postgresDialect{}

	dup := fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, d.isUniqueViolation(dup))
	assert.False(t, d.isBusy(dup))

	busy := &pgconn.PgError{Code: "40001"}
	assert.True(t, d.isBusy(busy))
	assert.False(t, d.isUniqueViolation(busy))

	assert.False(t, d.isUniqueViolation(errors.New("plain")))
}

func TestPostgres_RoundTrip(t *testing.T) {
	dsn := os.Getenv("TASKLEDGER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TASKLEDGER_TEST_POSTGRES_DSN not set, skipping postgres test")
	}
	ctx := context.Background()

	s, err := Open(ctx, Config{Driver: DriverPostgres, DSN: dsn})
	require.NoError(t, err)
	defer s.Close()

	id := fmt.Sprintf("PG-%d", time.Now().UnixNano())
	_, err = s.CreateTask(ctx, NewTask{ID: id, Title: "pg", Assignee: "pg-agent", Phase: 99})
	require.NoError(t, err)

	_, err = s.CreateTask(ctx, NewTask{ID: id, Title: "again", Assignee: "pg-agent", Phase: 99})
	require.ErrorIs(t, err, ErrDuplicateTask)

	require.NoError(t, s.UpdateTaskStatus(ctx, id, StatusCompleted, StatusUpdate{}))
	got, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, got.CompletedAt)

	msgID, err := s.SendMessage(ctx, NewMessage{From: "pg-agent", Content: "hello"})
	require.NoError(t, err)
	require.NoError(t, s.MarkRead(ctx, msgID))
}
