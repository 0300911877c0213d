package storage

import (
	"context"
	"database/sql"
	"fmt"

	// import the SQLite driver to register it with the database/sql package.
	_ "github.com/mattn/go-sqlite3"
)

const sqliteOptions = "?_busy_timeout=5000&_journal_mode=WAL&_fk=1"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS players (
		id           TEXT PRIMARY KEY,
		nickname     TEXT NOT NULL DEFAULT '',
		last_seen_at TIMESTAMP NOT NULL,
		created_at   TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS player_stats (
		player_id                  TEXT PRIMARY KEY REFERENCES players (id) ON DELETE CASCADE,
		games_played               INTEGER NOT NULL DEFAULT 0,
		games_won                  INTEGER NOT NULL DEFAULT 0,
		games_lost                 INTEGER NOT NULL DEFAULT 0,
		games_drawn                INTEGER NOT NULL DEFAULT 0,
		games_abandoned            INTEGER NOT NULL DEFAULT 0,
		total_time_played_seconds  INTEGER NOT NULL DEFAULT 0,
		current_days_played_streak INTEGER NOT NULL DEFAULT 0,
		longest_days_played_streak INTEGER NOT NULL DEFAULT 0,
		last_played_date           TEXT NOT NULL DEFAULT '',
		current_unbeaten_streak    INTEGER NOT NULL DEFAULT 0,
		longest_unbeaten_streak    INTEGER NOT NULL DEFAULT 0,
		updated_at                 TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stats_outcomes (
		player_id   TEXT NOT NULL REFERENCES players (id) ON DELETE CASCADE,
		outcome_key TEXT NOT NULL,
		recorded_at TIMESTAMP NOT NULL,
		PRIMARY KEY (player_id, outcome_key)
	)`,
}

type Storage struct {
	Connection *sql.DB
}

func NewSQLiteStorage(path string) (*Storage, error) {
	conn, err := sql.Open("sqlite3", path+sqliteOptions)
	if err != nil {
		return nil, fmt.Errorf("can't open database: %w", err)
	}

	// sqlite allows a single writer
	conn.SetMaxOpenConns(1)

	if err = conn.Ping(); err != nil {
		return nil, fmt.Errorf("can't connect to database: %w", err)
	}

	return &Storage{Connection: conn}, nil
}

func (that *Storage) Init(ctx context.Context) error {
	for _, query := range migrations {
		if _, err := that.Connection.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("can't create table: %w", err)
		}
	}

	return nil
}

func (that *Storage) Close() error {
	return that.Connection.Close()
}
