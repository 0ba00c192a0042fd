package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/xo/dburl"
	_ "modernc.org/sqlite"

	"github.com/noah-isme/sma-lifecycle-api/pkg/config"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by default.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Open returns a configured client for the store named by cfg together with
// the dialect the repositories must use against it.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, Dialect, error) {
	driver, dsn, err := resolveDSN(cfg)
	if err != nil {
		return nil, nil, err
	}
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return db, dialect, nil
}

// OpenSQLite opens an embedded database file, mostly for single-school
// deployments and tests.
func OpenSQLite(path string) (*sqlx.DB, Dialect, error) {
	return Open(config.DatabaseConfig{URL: "sqlite:" + path})
}

func resolveDSN(cfg config.DatabaseConfig) (string, string, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.Name,
			cfg.SSLMode,
		)
		return DriverPostgres, withPostgresTimeout(dsn, cfg.StatementTimeout), nil
	}

	u, err := dburl.Parse(cfg.URL)
	if err != nil {
		return "", "", fmt.Errorf("parse database url: %w", err)
	}

	switch u.Driver {
	case "postgres":
		return DriverPostgres, withPostgresTimeout(u.DSN, cfg.StatementTimeout), nil
	case "sqlite3", "sqlite":
		return DriverSQLite, sqliteDSN(u.DSN, cfg.StatementTimeout), nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", u.Driver)
	}
}

// withPostgresTimeout relies on lib/pq forwarding unknown keys as run-time
// parameters to the server.
func withPostgresTimeout(dsn string, timeout time.Duration) string {
	if timeout <= 0 || strings.Contains(dsn, "statement_timeout") {
		return dsn
	}
	if strings.Contains(dsn, "://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return fmt.Sprintf("%s%sstatement_timeout=%d", dsn, sep, timeout.Milliseconds())
	}
	return fmt.Sprintf("%s statement_timeout=%d", dsn, timeout.Milliseconds())
}

// sqliteDSN makes every transaction take the write lock up front so that
// concurrent writers queue on the busy timeout instead of failing on upgrade.
func sqliteDSN(path string, timeout time.Duration) string {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	path = strings.TrimPrefix(path, "file:")
	params := []string{
		"_pragma=foreign_keys(1)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", timeout.Milliseconds()),
		"_pragma=journal_mode(WAL)",
		"_txlock=immediate",
		"_time_format=sqlite",
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}
