package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/nines-backend/internal/apperror"
	"github.com/rocketscienceinc/nines-backend/internal/entity"
	"github.com/rocketscienceinc/nines-backend/internal/nines"
	"github.com/rocketscienceinc/nines-backend/internal/pkg"
)

type playerRepo interface {
	GetOrCreate(ctx context.Context, id string) (*entity.Player, error)
}

type gameRepo interface {
	Create(ctx context.Context, game *entity.Game) error
	Update(ctx context.Context, game *entity.Game, expectedRevision int64) error
	GetByCode(ctx context.Context, code string) (*entity.Game, error)
	DeleteByCode(ctx context.Context, code string, expectedRevision int64) error
	List(ctx context.Context) ([]*entity.Game, error)
}

type publisher interface {
	Publish(ctx context.Context, event *entity.Event) error
}

type statsRecorder interface {
	RecordGame(ctx context.Context, game *entity.Game) error
}

type GameManagerConfig struct {
	CodeLength      int
	MaxCodeAttempts int
}

// GameManager owns the lifecycle of game sessions. Mutations of one code are serialized by a
// keyed lock within the process and by a revision-checked save across processes; each one is applied to a copy, persisted, then published, and a finished game is handed
// to the stats recorder once.
type GameManager struct {
	logger *slog.Logger

	playerRepo playerRepo
	gameRepo   gameRepo
	publisher  publisher
	stats      statsRecorder

	locks *pkg.KeyedMutex

	codeLength      int
	maxCodeAttempts int

	now          func() time.Time
	generateCode func(length int) (string, error)
}

func NewGameManager(
	logger *slog.Logger,
	conf GameManagerConfig,
	playerRepo playerRepo,
	gameRepo gameRepo,
	publisher publisher,
	stats statsRecorder,
) *GameManager {
	return &GameManager{
		logger: logger.With("component", "game_manager"),

		playerRepo: playerRepo,
		gameRepo:   gameRepo,
		publisher:  publisher,
		stats:      stats,

		locks: pkg.NewKeyedMutex(),

		codeLength:      conf.CodeLength,
		maxCodeAttempts: conf.MaxCodeAttempts,

		now:          func() time.Time { return time.Now().UTC() },
		generateCode: pkg.GenerateGameCode,
	}
}

// GetOrCreatePlayer resolves an identity, issuing a new one for an empty id.
func (that *GameManager) GetOrCreatePlayer(ctx context.Context, id string) (*entity.Player, error) {
	player, err := that.playerRepo.GetOrCreate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create player: %w", err)
	}

	return player, nil
}

// CreateGame opens a waiting game with the requester as X. Code collisions are retried.
func (that *GameManager) CreateGame(ctx context.Context, playerID string) (*entity.Game, error) {
	log := that.logger.With("method", "CreateGame")

	player, err := that.GetOrCreatePlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= that.maxCodeAttempts; attempt++ {
		code, err := that.generateCode(that.codeLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate game code: %w", err)
		}

		game := entity.NewGame(code, player.ID, that.now())

		err = that.gameRepo.Create(ctx, game)
		if errors.Is(err, apperror.ErrGameAlreadyExists) {
			log.Debug("game code collision, retrying", "code", code, "attempt", attempt)
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to create game: %w", err)
		}

		log.Info("game created", "code", code)

		return game, nil
	}

	return nil, fmt.Errorf("failed to reserve a game code after %d attempts: %w",
		that.maxCodeAttempts, apperror.ErrGameAlreadyExists)
}

// JoinGame seats the requester as O. A participant joining again gets their existing mark back.
func (that *GameManager) JoinGame(ctx context.Context, code, playerID string) (*entity.Game, entity.Mark, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, entity.EmptyCell, err
	}

	player, err := that.GetOrCreatePlayer(ctx, playerID)
	if err != nil {
		return nil, entity.EmptyCell, err
	}

	unlock := that.locks.Lock(code)
	defer unlock()

	game, err := that.getGame(ctx, code)
	if err != nil {
		return nil, entity.EmptyCell, err
	}

	if mark := game.MarkOf(player.ID); mark != entity.EmptyCell {
		return game, mark, nil
	}

	if !game.IsWaiting() {
		return nil, entity.EmptyCell, apperror.ErrGameNotWaiting
	}

	now := that.now()

	updated := game.Clone()
	updated.Player2 = player.ID
	updated.Status = entity.StatusActive
	updated.StartedAt = &now
	updated.Revision++

	if err = that.saveGame(ctx, updated, game.Revision); err != nil {
		return nil, entity.EmptyCell, err
	}

	that.publish(ctx, entity.EventPlayerJoined, updated, map[string]any{
		"player": entity.PlayerO,
		"mark":   entity.PlayerO,
	})

	return updated, entity.PlayerO, nil
}

// MakeMove plays the requester's mark at (subBoard, cell).
func (that *GameManager) MakeMove(ctx context.Context, code, playerID string, subBoard, cell int) (*entity.Game, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}

	unlock := that.locks.Lock(code)
	defer unlock()

	game, err := that.getGame(ctx, code)
	if err != nil {
		return nil, err
	}

	mark := game.MarkOf(playerID)
	if mark == entity.EmptyCell {
		return nil, apperror.ErrNotParticipant
	}

	if game.IsWaiting() {
		return nil, apperror.ErrGameNotActive
	}

	updated := game.Clone()

	applied, err := nines.New(&updated.State).ApplyMove(subBoard, cell, mark)
	if err != nil {
		return nil, err
	}

	now := that.now()

	updated.MoveCount++
	updated.LastMove = &applied.Move
	updated.LastMoveAt = &now
	updated.Revision++

	if applied.GameOver {
		reason := entity.EndReasonWin
		if applied.WinnerMark == entity.EmptyCell {
			reason = entity.EndReasonDraw
		}

		updated.Finish(reason, now)
	}

	if err = that.saveGame(ctx, updated, game.Revision); err != nil {
		return nil, err
	}

	that.publish(ctx, entity.EventMoveMade, updated, map[string]any{
		"player":          mark,
		"mark":            mark,
		"sub_board":       subBoard,
		"cell":            cell,
		"sub_board_state": applied.SubBoardResult,
		"next_sub_board":  applied.NextSubBoard,
	})

	if updated.IsCompleted() {
		that.recordStats(ctx, updated)
	}

	return updated, nil
}

// Resign ends an active game in favor of the requester's opponent.
func (that *GameManager) Resign(ctx context.Context, code, playerID string) (*entity.Game, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}

	unlock := that.locks.Lock(code)
	defer unlock()

	game, err := that.getGame(ctx, code)
	if err != nil {
		return nil, err
	}

	mark := game.MarkOf(playerID)
	if mark == entity.EmptyCell {
		return nil, apperror.ErrNotParticipant
	}

	if game.IsWaiting() {
		return nil, apperror.ErrGameNotActive
	}

	updated := game.Clone()

	if err = nines.New(&updated.State).Resign(mark); err != nil {
		return nil, err
	}

	updated.Revision++
	updated.Finish(entity.EndReasonResign, that.now())

	if err = that.saveGame(ctx, updated, game.Revision); err != nil {
		return nil, err
	}

	that.publish(ctx, entity.EventPlayerResigned, updated, map[string]any{
		"player":         mark,
		"resigning_mark": mark,
		"winner_mark":    updated.State.WinnerMark,
	})

	that.recordStats(ctx, updated)

	return updated, nil
}

// GetGame - point read of the last durably saved state.
func (that *GameManager) GetGame(ctx context.Context, code string) (*entity.Game, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}

	return that.getGame(ctx, code)
}

func (that *GameManager) GlobalStats(ctx context.Context) (*entity.GlobalStats, error) {
	games, err := that.gameRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}

	return entity.ComputeGlobalStats(games), nil
}

// ListGames returns every persisted game.
func (that *GameManager) ListGames(ctx context.Context) ([]*entity.Game, error) {
	games, err := that.gameRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}

	return games, nil
}

// PurgeGame deletes the game if expired still holds under the code lock.
// Completed games get their stats reconciled first; that step is a no-op if already recorded.
func (that *GameManager) PurgeGame(ctx context.Context, code string, expired func(game *entity.Game) bool) (bool, error) {
	log := that.logger.With("method", "PurgeGame", "code", code)

	unlock := that.locks.Lock(code)
	defer unlock()

	game, err := that.getGame(ctx, code)
	if errors.Is(err, apperror.ErrGameNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	if !expired(game) {
		return false, nil
	}

	if game.IsCompleted() {
		if err = that.stats.RecordGame(ctx, game); err != nil {
			return false, fmt.Errorf("failed to reconcile stats: %w", err)
		}
	}

	err = that.gameRepo.DeleteByCode(ctx, code, game.Revision)
	if errors.Is(err, apperror.ErrGameConflict) || errors.Is(err, apperror.ErrGameNotFound) {
		log.Info("game changed before purge, kept", "error", err)
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to delete game: %w", err)
	}

	log.Info("game purged", "status", game.Status)

	return true, nil
}

func (that *GameManager) getGame(ctx context.Context, code string) (*entity.Game, error) {
	game, err := that.gameRepo.GetByCode(ctx, code)
	if errors.Is(err, apperror.ErrGameNotFound) {
		return nil, apperror.ErrGameNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return game, nil
}

// saveGame - the write only lands if the stored game is still at readRevision; another node
// having written in between yields ErrGameConflict and nothing is published.
func (that *GameManager) saveGame(ctx context.Context, game *entity.Game, readRevision int64) error {
	err := that.gameRepo.Update(ctx, game, readRevision)
	if errors.Is(err, apperror.ErrGameConflict) || errors.Is(err, apperror.ErrGameNotFound) {
		that.logger.Warn("game changed concurrently", "code", game.Code, "revision", readRevision, "error", err)
		return apperror.ErrGameConflict
	}

	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}

	return nil
}

// publish - the game is already saved, so a failed publish is only logged.
func (that *GameManager) publish(ctx context.Context, kind string, game *entity.Game, metadata map[string]any) {
	log := that.logger.With("method", "publish")

	if err := that.publisher.Publish(ctx, entity.NewEvent(kind, game, metadata, that.now())); err != nil {
		log.Error("failed to publish event", "code", game.Code, "kind", kind, "revision", game.Revision, "error", err)
	}
}

// recordStats - failures are logged; retention reconciles them before the game is purged.
func (that *GameManager) recordStats(ctx context.Context, game *entity.Game) {
	log := that.logger.With("method", "recordStats")

	if err := that.stats.RecordGame(ctx, game); err != nil {
		log.Error("failed to record stats", "code", game.Code, "error", err)
	}
}

func normalizeCode(code string) (string, error) {
	code = pkg.NormalizeCode(code)
	if !pkg.ValidCode(code) {
		return "", apperror.ErrInvalidCode
	}

	return code, nil
}
