package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

type postgresDialect struct{}

func (postgresDialect) driver() Driver { return DriverPostgres }

func (postgresDialect) sqlDriverName() string { return "pgx" }

func (postgresDialect) dsn(raw string) string { return raw }

func (postgresDialect) rebind(q string) string { return rebindDollar(q) }

func (postgresDialect) columnExistsQuery() string {
	return `SELECT COUNT(*) FROM information_schema.columns WHERE table_name = ? AND column_name = ?`
}

func (postgresDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id                BIGSERIAL PRIMARY KEY,
			task_id           TEXT UNIQUE NOT NULL,
			title             TEXT NOT NULL,
			description       TEXT NOT NULL DEFAULT '',
			assignee          TEXT NOT NULL,
			phase             INTEGER NOT NULL,
			status            TEXT NOT NULL DEFAULT 'pending',
			priority          TEXT NOT NULL DEFAULT 'P1',
			dependencies      TEXT NOT NULL DEFAULT '[]',
			deliverables      TEXT NOT NULL DEFAULT '[]',
			notes             TEXT NOT NULL DEFAULT '',
			created_at        TIMESTAMPTZ NOT NULL,
			started_at        TIMESTAMPTZ,
			completed_at      TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_phase ON tasks(phase, priority, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee)`,
		`CREATE TABLE IF NOT EXISTS agent_status (
			agent_name        TEXT PRIMARY KEY,
			current_task      TEXT NOT NULL DEFAULT '',
			status            TEXT NOT NULL DEFAULT 'idle',
			progress_percent  INTEGER NOT NULL DEFAULT 0,
			last_update       TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id            BIGSERIAL PRIMARY KEY,
			from_agent    TEXT NOT NULL,
			to_agent      TEXT,
			type          TEXT NOT NULL DEFAULT '',
			content       TEXT NOT NULL,
			task_ref      TEXT NOT NULL DEFAULT '',
			context_refs  TEXT NOT NULL DEFAULT '[]',
			read_status   BOOLEAN NOT NULL DEFAULT FALSE,
			created_at    TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_to ON messages(to_agent, created_at)`,
	}
}

// SQLSTATE codes treated as transient lock conflicts.
var pgBusyCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

func (postgresDialect) isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (postgresDialect) isBusy(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgBusyCodes[pgErr.Code]
}
