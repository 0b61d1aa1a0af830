package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Driver names the SQL backend behind a Store.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver parses a driver name as written in config or on the command line.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pg":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unknown store driver: %s", s)
	}
}

// dialect hides the differences between SQLite and PostgreSQL.
// Queries are written with '?' placeholders and rebound per dialect.
type dialect interface {
	driver() Driver
	sqlDriverName() string
	dsn(raw string) string
	schema() []string
	columnExistsQuery() string
	rebind(query string) string
	isUniqueViolation(err error) bool
	isBusy(err error) bool
}

func newDialect(d Driver) (dialect, error) {
	switch d {
	case DriverSQLite:
		return sqliteDialect{}, nil
	case DriverPostgres:
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", d)
	}
}

// rebindDollar rewrites '?' placeholders as $1, $2, ...
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
