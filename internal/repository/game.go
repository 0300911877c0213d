package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/nines-backend/internal/apperror"
	"github.com/rocketscienceinc/nines-backend/internal/entity"
)

const (
	gameKeyPrefix = "game:"
	scanBatchSize = 100
)

type GameRepository interface {
	Create(ctx context.Context, game *entity.Game) error
	Update(ctx context.Context, game *entity.Game, expectedRevision int64) error
	GetByCode(ctx context.Context, code string) (*entity.Game, error)
	DeleteByCode(ctx context.Context, code string, expectedRevision int64) error
	List(ctx context.Context) ([]*entity.Game, error)
}

type storedRevision struct {
	Revision int64 `json:"revision"`
}

type dbGame struct {
	client *redis.Client
}

func NewGameRepository(client *redis.Client) GameRepository {
	return &dbGame{
		client: client,
	}
}

func gameKey(code string) string {
	return gameKeyPrefix + code
}

// Create stores a new game only if its code is not taken yet.
func (that *dbGame) Create(ctx context.Context, game *entity.Game) error {
	gameJSON, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	ok, err := that.client.SetNX(ctx, gameKey(game.Code), gameJSON, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to reserve game code: %w", err)
	}

	if !ok {
		return apperror.ErrGameAlreadyExists
	}

	return nil
}

// Update replaces the stored game only if it is still at expectedRevision. The check and the
// write run under WATCH, so a concurrent writer on any node makes this call fail with ErrGameConflict.
func (that *dbGame) Update(ctx context.Context, game *entity.Game, expectedRevision int64) error {
	gameJSON, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	key := gameKey(game.Code)

	return that.compareAndSwap(ctx, key, expectedRevision, func(pipe redis.Pipeliner) {
		pipe.Set(ctx, key, gameJSON, 0)
	})
}

func (that *dbGame) GetByCode(ctx context.Context, code string) (*entity.Game, error) {
	response, err := that.client.Get(ctx, gameKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrGameNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get game by code: %w", err)
	}

	var existingGame entity.Game
	if err = json.Unmarshal([]byte(response), &existingGame); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %w", err)
	}

	return &existingGame, nil
}

// DeleteByCode removes the game only if it is still at expectedRevision.
func (that *dbGame) DeleteByCode(ctx context.Context, code string, expectedRevision int64) error {
	key := gameKey(code)

	return that.compareAndSwap(ctx, key, expectedRevision, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, key)
	})
}

// compareAndSwap runs write in a MULTI block if the game at key still has expectedRevision.
func (that *dbGame) compareAndSwap(
	ctx context.Context, key string, expectedRevision int64, write func(pipe redis.Pipeliner),
) error {
	err := that.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return apperror.ErrGameNotFound
		}

		if err != nil {
			return fmt.Errorf("failed to get game: %w", err)
		}

		var stored storedRevision
		if err = json.Unmarshal(raw, &stored); err != nil {
			return fmt.Errorf("failed to unmarshal game: %w", err)
		}

		if stored.Revision != expectedRevision {
			return apperror.ErrGameConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			write(pipe)
			return nil
		})

		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return apperror.ErrGameConflict
	case apperror.KindOf(err) != apperror.KindInternal:
		return err
	default:
		return fmt.Errorf("failed to write game: %w", err)
	}
}

// List returns every stored game. Keys removed between SCAN and MGET are skipped.
func (that *dbGame) List(ctx context.Context) ([]*entity.Game, error) {
	var games []*entity.Game

	iter := that.client.Scan(ctx, 0, gameKeyPrefix+"*", scanBatchSize).Iterator()

	batch := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())

		if len(batch) == scanBatchSize {
			loaded, err := that.getMany(ctx, batch)
			if err != nil {
				return nil, err
			}

			games = append(games, loaded...)
			batch = batch[:0]
		}
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan games: %w", err)
	}

	loaded, err := that.getMany(ctx, batch)
	if err != nil {
		return nil, err
	}

	return append(games, loaded...), nil
}

func (that *dbGame) getMany(ctx context.Context, keys []string) ([]*entity.Game, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := that.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get games: %w", err)
	}

	games := make([]*entity.Game, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var game entity.Game
		if err = json.Unmarshal([]byte(raw), &game); err != nil {
			return nil, fmt.Errorf("failed to unmarshal game: %w", err)
		}

		games = append(games, &game)
	}

	return games, nil
}
