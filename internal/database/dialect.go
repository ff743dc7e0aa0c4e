package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Dialect captures the few places where the supported engines disagree: driver name,
// DDL, the conflict-ignoring account upsert and how a uniqueness violation is reported.
type Dialect interface {
	Name() string
	Driver() string
	Schema() []string
	InsertAccountIgnoreConflict() string
	IsUniqueViolation(err error) bool
}

const pgUniqueViolation = "23505"

const mysqlDuplicateEntry = 1062

type postgresDialect struct{}

func (postgresDialect) Name() string     { return "postgres" }
func (postgresDialect) Driver() string   { return "pgx" }
func (postgresDialect) Schema() []string { return postgresSchema }

func (postgresDialect) InsertAccountIgnoreConflict() string {
	return `INSERT INTO users (user_id) VALUES (?) ON CONFLICT (user_id) DO NOTHING`
}

func (postgresDialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string     { return "mysql" }
func (mysqlDialect) Driver() string   { return "mysql" }
func (mysqlDialect) Schema() []string { return mysqlSchema }

func (mysqlDialect) InsertAccountIgnoreConflict() string {
	return `INSERT INTO users (user_id) VALUES (?) ON DUPLICATE KEY UPDATE user_id = user_id`
}

func (mysqlDialect) IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string     { return "sqlite" }
func (sqliteDialect) Driver() string   { return "sqlite3" }
func (sqliteDialect) Schema() []string { return sqliteSchema }

func (sqliteDialect) InsertAccountIgnoreConflict() string {
	return `INSERT INTO users (user_id) VALUES (?) ON CONFLICT (user_id) DO NOTHING`
}

func (sqliteDialect) IsUniqueViolation(err error) bool {
	var liteErr sqlite3.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// Resolve picks the dialect from the DATABASE_URL scheme and returns the DSN in the
// form the driver expects.
func Resolve(databaseURL string) (Dialect, string, error) {
	raw := strings.TrimSpace(databaseURL)
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return postgresDialect{}, raw, nil
	case strings.HasPrefix(raw, "mysql://"):
		dsn, err := mysqlDSN(strings.TrimPrefix(raw, "mysql://"))
		if err != nil {
			return nil, "", err
		}
		return mysqlDialect{}, dsn, nil
	case strings.HasPrefix(raw, "sqlite://"):
		return sqliteDialect{}, sqliteDSN("file:" + strings.TrimPrefix(raw, "sqlite://")), nil
	case strings.HasPrefix(raw, "file:"):
		return sqliteDialect{}, sqliteDSN(raw), nil
	default:
		return nil, "", fmt.Errorf("unsupported database url scheme in %q", redact(raw))
	}
}

func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_foreign_keys=on&_busy_timeout=5000"
}

func redact(raw string) string {
	if i := strings.Index(raw, "://"); i >= 0 {
		return raw[:i+3] + "..."
	}
	if len(raw) > 8 {
		return raw[:8] + "..."
	}
	return raw
}
