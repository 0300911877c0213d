package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/nines-backend/internal/apperror"
	"github.com/rocketscienceinc/nines-backend/internal/entity"
)

type PlayerRepository interface {
	GetOrCreate(ctx context.Context, id string) (*entity.Player, error)
}

type dbPlayer struct {
	conn *sql.DB
	now  func() time.Time
}

func NewPlayerRepository(conn *sql.DB) PlayerRepository {
	return &dbPlayer{
		conn: conn,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreate loads the identity, creating it and its stats row on first sight.
// An empty id issues a new one. Every call touches last_seen_at.
func (that *dbPlayer) GetOrCreate(ctx context.Context, id string) (*entity.Player, error) {
	if id == "" {
		id = uuid.NewString()
	}

	now := that.now()

	tx, err := that.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err = upsertPlayer(ctx, tx, id, now); err != nil {
		return nil, err
	}

	query := `INSERT OR IGNORE INTO player_stats (player_id, updated_at) VALUES (?, ?)`
	if _, err = tx.ExecContext(ctx, query, id, now); err != nil {
		return nil, fmt.Errorf("failed to create player stats: %w", err)
	}

	player, err := scanPlayer(tx.QueryRowContext(ctx, selectPlayerQuery, id))
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit player: %w", err)
	}

	return player, nil
}

const selectPlayerQuery = `SELECT id, nickname, last_seen_at, created_at FROM players WHERE id = ?`

func upsertPlayer(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	query := `INSERT INTO players (id, last_seen_at, created_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET last_seen_at = excluded.last_seen_at`

	if _, err := tx.ExecContext(ctx, query, id, now, now); err != nil {
		return fmt.Errorf("failed to save player: %w", err)
	}

	return nil
}

func scanPlayer(row *sql.Row) (*entity.Player, error) {
	var player entity.Player

	err := row.Scan(&player.ID, &player.Nickname, &player.LastSeenAt, &player.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrPlayerNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	return &player, nil
}
