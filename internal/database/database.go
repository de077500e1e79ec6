package database

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}

	// Initialize tables and run migrations
	if err := db.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.migrateSchema(); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// createTables creates the necessary tables
func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS user_times (
			user_id TEXT PRIMARY KEY,
			total_ms BIGINT NOT NULL DEFAULT 0,
			sessions BIGINT NOT NULL DEFAULT 0,
			longest_ms BIGINT NOT NULL DEFAULT 0,
			today_ms BIGINT NOT NULL DEFAULT 0,
			last_active TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS faction_times (
			faction TEXT PRIMARY KEY,
			total_ms BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS guild_settings (
			guild_id TEXT PRIMARY KEY,
			factions_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			clock_channel_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS calendar_settings (
			guild_id TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL DEFAULT '',
			message_id TEXT NOT NULL DEFAULT '',
			timezone TEXT NOT NULL DEFAULT 'UTC',
			last_updated TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS user_timezones (
			user_id TEXT PRIMARY KEY,
			timezone TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS faction_points (
			faction TEXT PRIMARY KEY,
			points BIGINT NOT NULL DEFAULT 0,
			victories BIGINT NOT NULL DEFAULT 0,
			activities BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS bot_admins (
			kind TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			PRIMARY KEY (kind, subject_id)
		)`,
		`CREATE TABLE IF NOT EXISTS calendar_events (
			id TEXT PRIMARY KEY,
			guild_id TEXT NOT NULL,
			day TEXT NOT NULL,
			date TEXT NOT NULL,
			time TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			author TEXT NOT NULL DEFAULT '',
			author_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// migrateSchema handles database schema migrations
func (db *DB) migrateSchema() error {
	migrations := []string{
		// Events created before timezone support only have date and time
		`ALTER TABLE calendar_events ADD COLUMN IF NOT EXISTS input_time TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE calendar_events ADD COLUMN IF NOT EXISTS utc_ts BIGINT`,
		`ALTER TABLE calendar_events ADD COLUMN IF NOT EXISTS guild_timezone TEXT NOT NULL DEFAULT ''`,
		`CREATE INDEX IF NOT EXISTS calendar_events_guild_idx ON calendar_events (guild_id, created_at)`,

		// Older user rows had no daily counter
		`ALTER TABLE user_times ADD COLUMN IF NOT EXISTS today_ms BIGINT NOT NULL DEFAULT 0`,
		`ALTER TABLE user_times ADD COLUMN IF NOT EXISTS last_active TIMESTAMPTZ`,

		`ALTER TABLE calendar_settings ADD COLUMN IF NOT EXISTS timezone TEXT NOT NULL DEFAULT 'UTC'`,
	}

	for _, migration := range migrations {
		if _, err := db.conn.Exec(migration); err != nil {
			log.Printf("Warning: Migration failed (this might be expected): %v", err)
		}
	}

	return nil
}
