package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/nines-backend/internal/broadcast"
	"github.com/rocketscienceinc/nines-backend/internal/config"
	"github.com/rocketscienceinc/nines-backend/internal/repository"
	"github.com/rocketscienceinc/nines-backend/internal/repository/storage"
	"github.com/rocketscienceinc/nines-backend/internal/usecase"
	"github.com/rocketscienceinc/nines-backend/internal/worker"
	"github.com/rocketscienceinc/nines-backend/transport/rest"
	"github.com/rocketscienceinc/nines-backend/transport/websocket"
)

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisStorage, err := storage.NewRedisStorage(ctx, storage.RedisOptions{
		Addr:     conf.Redis.GetRedisAddr(),
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err := redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	sqliteStorage, err := storage.NewSQLiteStorage(conf.SQLiteStoragePath)
	if err != nil {
		return fmt.Errorf("could not open sqlite storage: %w", err)
	}

	defer func() {
		if err := sqliteStorage.Close(); err != nil {
			log.Error("could not close sqlite storage", "error", err)
		}
	}()

	if err = sqliteStorage.Init(ctx); err != nil {
		return fmt.Errorf("could not migrate sqlite storage: %w", err)
	}

	broadcaster := newBroadcaster(logger, conf, redisStorage)

	defer func() {
		if err := broadcaster.Close(); err != nil {
			log.Error("could not close broadcaster", "error", err)
		}
	}()

	playerRepo := repository.NewPlayerRepository(sqliteStorage.Connection)
	gameRepo := repository.NewGameRepository(redisStorage.Connection)
	statsRepo := repository.NewStatsRepository(sqliteStorage.Connection)

	statsLocation, err := conf.Stats.Location()
	if err != nil {
		return fmt.Errorf("could not resolve stats timezone: %w", err)
	}

	statsUseCase := usecase.NewStatsAggregator(logger, statsRepo, statsLocation)
	gameUseCase := usecase.NewGameManager(logger, usecase.GameManagerConfig{
		CodeLength:      conf.Game.CodeLength,
		MaxCodeAttempts: conf.Game.MaxCodeAttempts,
	}, playerRepo, gameRepo, broadcaster, statsUseCase)

	wsServer := websocket.New(logger, gameUseCase, broadcaster)
	httpServer := rest.New(logger, rest.NewHandlers(logger, gameUseCase, statsUseCase), wsServer)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort, "broadcast", conf.Broadcast.Backend)

		if err := httpServer.Start(groupCtx, conf.HTTPPort); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}

		return nil
	})

	if conf.Retention.Enabled {
		retention := worker.NewRetention(logger, gameUseCase, worker.RetentionConfig{
			Interval:     conf.Retention.Interval,
			WaitingTTL:   conf.Retention.WaitingTTL,
			CompletedTTL: conf.Retention.CompletedTTL,
		})

		group.Go(func() error {
			if err := retention.Run(groupCtx); err != nil {
				return fmt.Errorf("retention worker error: %w", err)
			}

			return nil
		})
	}

	err = group.Wait()
	log.Info("Application stopped")

	return err
}

func newBroadcaster(logger *slog.Logger, conf *config.Config, redisStorage *storage.RedisStorage) broadcast.Broadcaster {
	if conf.Broadcast.Backend == config.BroadcastLocal {
		return broadcast.NewLocalHub(logger, conf.Broadcast.SubscriberBuffer)
	}

	return broadcast.NewRedisBroadcaster(logger, redisStorage.Connection, conf.Broadcast.SubscriberBuffer)
}
