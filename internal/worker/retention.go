package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/rocketscienceinc/nines-backend/internal/entity"
)

type gameStore interface {
	ListGames(ctx context.Context) ([]*entity.Game, error)
	PurgeGame(ctx context.Context, code string, expired func(game *entity.Game) bool) (bool, error)
}

type RetentionConfig struct {
	Interval     time.Duration
	WaitingTTL   time.Duration
	CompletedTTL time.Duration
}

// Retention periodically removes games nobody joined and finished games past their retention.
// Active games are never touched.
type Retention struct {
	logger *slog.Logger
	games  gameStore
	conf   RetentionConfig

	now func() time.Time
}

func NewRetention(logger *slog.Logger, games gameStore, conf RetentionConfig) *Retention {
	return &Retention{
		logger: logger.With("component", "retention"),
		games:  games,
		conf:   conf,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps on every interval until ctx is done.
func (that *Retention) Run(ctx context.Context) error {
	log := that.logger.With("method", "Run")

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(that.conf.Interval),
		gocron.NewTask(func() {
			purged, err := that.Sweep(ctx)
			if err != nil {
				log.Error("retention sweep failed", "error", err)
			}

			if purged > 0 {
				log.Info("retention sweep finished", "purged", purged)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule retention job: %w", err)
	}

	log.Info("Starting retention worker", "interval", that.conf.Interval)
	scheduler.Start()

	<-ctx.Done()

	if err = scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}

	return nil
}

// Sweep purges every expired game once and returns how many were removed.
func (that *Retention) Sweep(ctx context.Context) (int, error) {
	games, err := that.games.ListGames(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list games: %w", err)
	}

	purged := 0
	var errs []error

	for _, game := range games {
		if !that.Expired(game) {
			continue
		}

		ok, err := that.games.PurgeGame(ctx, game.Code, that.Expired)
		if err != nil {
			errs = append(errs, fmt.Errorf("game %s: %w", game.Code, err))
			continue
		}

		if ok {
			purged++
		}
	}

	return purged, errors.Join(errs...)
}

// Expired reports whether game is past its retention. A zero TTL keeps games forever.
func (that *Retention) Expired(game *entity.Game) bool {
	now := that.now()

	switch game.Status {
	case entity.StatusWaiting:
		return that.conf.WaitingTTL > 0 && now.Sub(game.CreatedAt) > that.conf.WaitingTTL
	case entity.StatusCompleted:
		return that.conf.CompletedTTL > 0 && game.EndedAt != nil && now.Sub(*game.EndedAt) > that.conf.CompletedTTL
	default:
		return false
	}
}
