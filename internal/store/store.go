// Package store is the persistence layer of the ledger: tasks, agent status
// records and the message log, kept in SQLite or PostgreSQL.
//
// Every exported operation is a single statement against a pooled
// connection, so it commits (or fails) on its own and holds no connection
// after it returns.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Config selects and locates the database.
type Config struct {
	Driver Driver
	// DSN is a file path for SQLite or a connection string for PostgreSQL.
	DSN string
}

// Store provides access to the ledger database.
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
	log     *slog.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New opens (or creates) the SQLite database at the given path.
func New(dbPath string, opts ...Option) (*Store, error) {
	return Open(context.Background(), Config{Driver: DriverSQLite, DSN: dbPath}, opts...)
}

// Open connects to the configured database and creates any missing tables.
// Failures are reported as ErrUnavailable.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}
	d, err := newDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: empty %s DSN", ErrUnavailable, cfg.Driver)
	}

	db, err := sql.Open(d.sqlDriverName(), d.dsn(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("open database: %w: %w", ErrUnavailable, err)
	}
	if d.driver() == DriverSQLite && inMemorySQLite(cfg.DSN) {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{
		db:      db,
		dialect: d,
		now:     func() time.Time { return time.Now().UTC() },
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w: %w", ErrUnavailable, err)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w: %w", ErrUnavailable, err)
	}
	s.log.Debug("store opened", "driver", cfg.Driver)
	return s, nil
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver reports which backend the store runs on.
func (s *Store) Driver() Driver {
	return s.dialect.driver()
}

// sessionColumns were added to tasks for the session-oriented profile.
// Older databases get them on open.
var sessionColumns = []struct{ name, def string }{
	{"assignee_session", "TEXT NOT NULL DEFAULT ''"},
	{"git_branch", "TEXT NOT NULL DEFAULT ''"},
	{"review_status", "TEXT NOT NULL DEFAULT ''"},
	{"input_specs", "TEXT NOT NULL DEFAULT ''"},
	{"output_specs", "TEXT NOT NULL DEFAULT ''"},
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	for _, c := range sessionColumns {
		if err := s.addColumnIfMissing(ctx, "tasks", c.name, c.def); err != nil {
			return fmt.Errorf("add column %s: %w", c.name, err)
		}
	}
	return nil
}

// addColumnIfMissing adds a column to a table if it doesn't exist yet.
func (s *Store) addColumnIfMissing(ctx context.Context, table, column, colDef string) error {
	var n int
	if err := s.queryRow(ctx, s.dialect.columnExistsQuery(), table, column).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, "ALTER TABLE "+table+" ADD COLUMN "+column+" "+colDef)
	return err
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// expectRow turns a zero-row update into notFound.
func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// encodeList stores an opaque list as a JSON array. nil becomes "[]".
func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		// []string always marshals.
		return "[]"
	}
	return string(b)
}

func decodeList(raw string) ([]string, error) {
	items := []string{}
	if raw == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode list %q: %w", raw, err)
	}
	return items, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
