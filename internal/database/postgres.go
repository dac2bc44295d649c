package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"cinesphere/internal/config"
)

// NewPostgres opens the Postgres pool and applies the schema.
func NewPostgres(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)

	slog.Info("connected to PostgreSQL", "db", cfg.DBName)

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS user_profiles (
		user_id VARCHAR(128) PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		favorite_genres TEXT[] DEFAULT '{}',
		age_safe BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS watchlist_entries (
		user_id VARCHAR(128) NOT NULL,
		movie_id INTEGER NOT NULL,
		title VARCHAR(500) NOT NULL,
		poster TEXT NOT NULL DEFAULT '',
		status VARCHAR(20) NOT NULL CHECK (status IN ('Watchlist', 'Watched')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, movie_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_watchlist_entries_user_created ON watchlist_entries(user_id, created_at DESC)`,
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	slog.Info("database migrations completed")
	return nil
}
