package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/nines-backend/internal/entity"
	"github.com/rocketscienceinc/nines-backend/internal/pkg"
)

type statsRepo interface {
	GetByPlayerID(ctx context.Context, playerID string) (*entity.PlayerStats, error)
	Update(ctx context.Context, playerID, outcomeKey string, fn func(stats *entity.PlayerStats) error) (bool, error)
}

// StatsAggregator updates player records when games end. Updates of one identity are
// serialized; the two participants of a game are updated concurrently.
type StatsAggregator struct {
	logger *slog.Logger

	repo  statsRepo
	locks *pkg.KeyedMutex

	// location is the calendar daily streaks are counted in.
	location *time.Location
	now      func() time.Time
}

// NewStatsAggregator counts play days in location, UTC when nil.
func NewStatsAggregator(logger *slog.Logger, repo statsRepo, location *time.Location) *StatsAggregator {
	if location == nil {
		location = time.UTC
	}

	return &StatsAggregator{
		logger:   logger.With("component", "stats_aggregator"),
		repo:     repo,
		locks:    pkg.NewKeyedMutex(),
		location: location,
		now:      time.Now,
	}
}

// RecordOutcome applies one result to the player's record. An outcomeKey seen before for
// the same player is ignored and reported as not applied.
func (that *StatsAggregator) RecordOutcome(
	ctx context.Context, playerID, result string, durationSeconds int64, outcomeKey string,
) (bool, error) {
	unlock := that.locks.Lock(playerID)
	defer unlock()

	today := that.now().In(that.location)

	applied, err := that.repo.Update(ctx, playerID, outcomeKey, func(stats *entity.PlayerStats) error {
		return stats.Record(result, durationSeconds, today)
	})
	if err != nil {
		return false, fmt.Errorf("failed to record %s for player %s: %w", result, playerID, err)
	}

	return applied, nil
}

// RecordGame records the outcome of a completed game for both participants.
func (that *StatsAggregator) RecordGame(ctx context.Context, game *entity.Game) error {
	log := that.logger.With("method", "RecordGame", "code", game.Code)

	if !game.IsCompleted() {
		return nil
	}

	key := game.OutcomeKey()
	duration := game.DurationSeconds()

	group, groupCtx := errgroup.WithContext(ctx)

	for playerID, result := range game.Outcomes() {
		group.Go(func() error {
			applied, err := that.RecordOutcome(groupCtx, playerID, result, duration, key)
			if err != nil {
				return err
			}

			if !applied {
				log.Debug("outcome already recorded", "player", playerID)
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return fmt.Errorf("failed to record game: %w", err)
	}

	return nil
}

func (that *StatsAggregator) GetPlayerStats(ctx context.Context, playerID string) (*entity.PlayerStats, error) {
	stats, err := that.repo.GetByPlayerID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player stats: %w", err)
	}

	return stats, nil
}
