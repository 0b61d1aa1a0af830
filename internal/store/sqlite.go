package store

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type sqliteDialect struct{}

func (sqliteDialect) driver() Driver { return DriverSQLite }

func (sqliteDialect) sqlDriverName() string { return "sqlite" }

// dsn turns a plain file path into a URI carrying the pragmas every pooled
// connection needs. WAL lets readers proceed while a writer holds the lock;
// busy_timeout makes writers wait before reporting SQLITE_BUSY.
func (sqliteDialect) dsn(raw string) string {
	if strings.HasPrefix(raw, "file:") || raw == ":memory:" {
		return raw
	}
	return "file:" + raw + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// inMemorySQLite reports whether raw names an in-memory database. Such a
// database lives on the connection that created it.
func inMemorySQLite(raw string) bool {
	return raw == ":memory:" || strings.HasPrefix(raw, "file::memory:") || strings.Contains(raw, "mode=memory")
}

func (sqliteDialect) schema() []string {
	return []string{`
	CREATE TABLE IF NOT EXISTS tasks (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
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
		created_at        DATETIME NOT NULL,
		started_at        DATETIME,
		completed_at      DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_phase ON tasks(phase, priority, created_at);
	CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee);

	CREATE TABLE IF NOT EXISTS agent_status (
		agent_name        TEXT PRIMARY KEY,
		current_task      TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL DEFAULT 'idle',
		progress_percent  INTEGER NOT NULL DEFAULT 0,
		last_update       DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		from_agent    TEXT NOT NULL,
		to_agent      TEXT,
		type          TEXT NOT NULL DEFAULT '',
		content       TEXT NOT NULL,
		task_ref      TEXT NOT NULL DEFAULT '',
		context_refs  TEXT NOT NULL DEFAULT '[]',
		read_status   BOOLEAN NOT NULL DEFAULT 0,
		created_at    DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_to ON messages(to_agent, created_at);
	`}
}

func (sqliteDialect) columnExistsQuery() string {
	return `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`
}

func (sqliteDialect) rebind(query string) string { return query }

func (sqliteDialect) isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}

func (sqliteDialect) isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	primary := se.Code() & 0xff
	return primary == sqlite3.SQLITE_BUSY || primary == sqlite3.SQLITE_LOCKED
}
