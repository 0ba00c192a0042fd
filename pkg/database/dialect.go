package database

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Dialect captures the handful of statements that differ between the
// supported stores.
type Dialect interface {
	Name() string
	// LockClause is appended to row selects made inside a write transaction.
	LockClause() string
	IsUniqueViolation(err error) bool
	// ColumnExistsQuery takes (table, column) and yields a single count.
	ColumnExistsQuery() string
}

// DialectFor returns the dialect registered for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverPostgres, "pgx":
		return Postgres{}, nil
	case DriverSQLite, "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("no dialect for driver %q", driver)
	}
}

type Postgres struct{}

func (Postgres) Name() string { return DriverPostgres }

func (Postgres) LockClause() string { return " FOR UPDATE" }

func (Postgres) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func (Postgres) ColumnExistsQuery() string {
	return `SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ? AND column_name = ?`
}

// SQLite relies on IMMEDIATE transactions for write serialisation, so no
// row lock clause is needed.
type SQLite struct{}

func (SQLite) Name() string { return DriverSQLite }

func (SQLite) LockClause() string { return "" }

func (SQLite) IsUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func (SQLite) ColumnExistsQuery() string {
	return `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`
}
