package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDuplicateTask is returned by CreateTask when the task ID is taken.
	ErrDuplicateTask = errors.New("task already exists")

	// ErrTaskNotFound is returned when an update addresses a missing task.
	ErrTaskNotFound = errors.New("task not found")

	// ErrMessageNotFound is returned by MarkRead for an unknown message ID.
	ErrMessageNotFound = errors.New("message not found")

	// ErrInvalid marks a request rejected before reaching the database.
	ErrInvalid = errors.New("invalid argument")

	// ErrBusy means the database was locked by another writer. Retry.
	ErrBusy = errors.New("store busy")

	// ErrUnavailable means the database could not be opened, read or written.
	ErrUnavailable = errors.New("store unavailable")
)

// IsRetryable reports whether err is a transient lock conflict.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// classify maps a driver error onto the store's error kinds.
// Context cancellation passes through untouched.
func (s *Store) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch {
	case s.dialect.isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, ErrDuplicateTask)
	case s.dialect.isBusy(err):
		return fmt.Errorf("%s: %w: %w", op, ErrBusy, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
}
