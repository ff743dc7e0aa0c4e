package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/digkill/TGSongBot/internal/config"
)

// DB is the shared connection pool together with the dialect it speaks.
type DB struct {
	*sqlx.DB
	Dialect Dialect
}

// Connect opens the database named by DATABASE_URL with sensible pooling defaults.
func Connect(cfg config.Config) (*DB, error) {
	dialect, dsn, err := Resolve(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(dialect.Driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name(), err)
	}

	if dialect.Name() == "sqlite" {
		// SQLite has a single writer; one connection keeps transactions from tripping
		// over each other's locks.
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxLifetime(time.Minute * 5)
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Name(), err)
	}

	return &DB{DB: db, Dialect: dialect}, nil
}

// Migrate runs the bootstrap schema to ensure required tables exist.
func Migrate(ctx context.Context, db *DB) error {
	for _, stmt := range db.Dialect.Schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
