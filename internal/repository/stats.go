package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rocketscienceinc/nines-backend/internal/apperror"
	"github.com/rocketscienceinc/nines-backend/internal/entity"
)

type StatsRepository interface {
	GetByPlayerID(ctx context.Context, playerID string) (*entity.PlayerStats, error)
	Update(ctx context.Context, playerID, outcomeKey string, fn func(stats *entity.PlayerStats) error) (bool, error)
}

type dbStats struct {
	conn *sql.DB
	now  func() time.Time
}

func NewStatsRepository(conn *sql.DB) StatsRepository {
	return &dbStats{
		conn: conn,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

const selectStatsQuery = `SELECT player_id, games_played, games_won, games_lost, games_drawn, games_abandoned,
	total_time_played_seconds, current_days_played_streak, longest_days_played_streak, last_played_date,
	current_unbeaten_streak, longest_unbeaten_streak, updated_at
	FROM player_stats WHERE player_id = ?`

func (that *dbStats) GetByPlayerID(ctx context.Context, playerID string) (*entity.PlayerStats, error) {
	stats, err := scanStats(that.conn.QueryRowContext(ctx, selectStatsQuery, playerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrPlayerNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get player stats: %w", err)
	}

	return stats, nil
}

// Update runs fn on the player's record inside one transaction. A non-empty outcomeKey
// already recorded for the player makes the call a no-op and returns false.
func (that *dbStats) Update(
	ctx context.Context, playerID, outcomeKey string, fn func(stats *entity.PlayerStats) error,
) (bool, error) {
	now := that.now()

	tx, err := that.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := `INSERT OR IGNORE INTO players (id, last_seen_at, created_at) VALUES (?, ?, ?)`
	if _, err = tx.ExecContext(ctx, query, playerID, now, now); err != nil {
		return false, fmt.Errorf("failed to ensure player: %w", err)
	}

	if outcomeKey != "" {
		query = `INSERT OR IGNORE INTO stats_outcomes (player_id, outcome_key, recorded_at) VALUES (?, ?, ?)`

		result, err := tx.ExecContext(ctx, query, playerID, outcomeKey, now)
		if err != nil {
			return false, fmt.Errorf("failed to record outcome key: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to read affected rows: %w", err)
		}

		if affected == 0 {
			return false, nil
		}
	}

	stats, err := scanStats(tx.QueryRowContext(ctx, selectStatsQuery, playerID))
	if errors.Is(err, sql.ErrNoRows) {
		stats = &entity.PlayerStats{PlayerID: playerID}
	} else if err != nil {
		return false, fmt.Errorf("failed to get player stats: %w", err)
	}

	if err = fn(stats); err != nil {
		return false, err
	}

	if err = upsertStats(ctx, tx, stats); err != nil {
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit player stats: %w", err)
	}

	return true, nil
}

func upsertStats(ctx context.Context, tx *sql.Tx, stats *entity.PlayerStats) error {
	query := `INSERT INTO player_stats (
		player_id, games_played, games_won, games_lost, games_drawn, games_abandoned,
		total_time_played_seconds, current_days_played_streak, longest_days_played_streak, last_played_date,
		current_unbeaten_streak, longest_unbeaten_streak, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (player_id) DO UPDATE SET
		games_played = excluded.games_played,
		games_won = excluded.games_won,
		games_lost = excluded.games_lost,
		games_drawn = excluded.games_drawn,
		games_abandoned = excluded.games_abandoned,
		total_time_played_seconds = excluded.total_time_played_seconds,
		current_days_played_streak = excluded.current_days_played_streak,
		longest_days_played_streak = excluded.longest_days_played_streak,
		last_played_date = excluded.last_played_date,
		current_unbeaten_streak = excluded.current_unbeaten_streak,
		longest_unbeaten_streak = excluded.longest_unbeaten_streak,
		updated_at = excluded.updated_at`

	_, err := tx.ExecContext(ctx, query,
		stats.PlayerID, stats.GamesPlayed, stats.GamesWon, stats.GamesLost, stats.GamesDrawn, stats.GamesAbandoned,
		stats.TotalTimePlayedSeconds, stats.CurrentDaysPlayedStreak, stats.LongestDaysPlayedStreak, stats.LastPlayedDate,
		stats.CurrentUnbeatenStreak, stats.LongestUnbeatenStreak, stats.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save player stats: %w", err)
	}

	return nil
}

func scanStats(row *sql.Row) (*entity.PlayerStats, error) {
	var stats entity.PlayerStats

	err := row.Scan(
		&stats.PlayerID, &stats.GamesPlayed, &stats.GamesWon, &stats.GamesLost, &stats.GamesDrawn, &stats.GamesAbandoned,
		&stats.TotalTimePlayedSeconds, &stats.CurrentDaysPlayedStreak, &stats.LongestDaysPlayedStreak, &stats.LastPlayedDate,
		&stats.CurrentUnbeatenStreak, &stats.LongestUnbeatenStreak, &stats.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}
