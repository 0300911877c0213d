package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rocketscienceinc/nines-backend/internal/apperror"
	"github.com/rocketscienceinc/nines-backend/internal/entity"
)

const (
	PlayerHeader = "X-Player-ID"
	PlayerCookie = "player_id"

	playerCookieTTL = 365 * 24 * time.Hour
)

type gameUseCase interface {
	GetOrCreatePlayer(ctx context.Context, id string) (*entity.Player, error)
	CreateGame(ctx context.Context, playerID string) (*entity.Game, error)
	JoinGame(ctx context.Context, code, playerID string) (*entity.Game, entity.Mark, error)
	MakeMove(ctx context.Context, code, playerID string, subBoard, cell int) (*entity.Game, error)
	Resign(ctx context.Context, code, playerID string) (*entity.Game, error)
	GetGame(ctx context.Context, code string) (*entity.Game, error)
	GlobalStats(ctx context.Context) (*entity.GlobalStats, error)
}

type statsUseCase interface {
	GetPlayerStats(ctx context.Context, playerID string) (*entity.PlayerStats, error)
}

type Handlers struct {
	logger *slog.Logger

	game  gameUseCase
	stats statsUseCase
}

func NewHandlers(logger *slog.Logger, game gameUseCase, stats statsUseCase) *Handlers {
	return &Handlers{
		logger: logger.With("component", "rest"),
		game:   game,
		stats:  stats,
	}
}

type gameResponse struct {
	PlayerID string           `json:"player_id,omitempty"`
	Mark     entity.Mark      `json:"mark,omitempty"`
	Game     *entity.Snapshot `json:"game"`
}

type moveRequest struct {
	SubBoard *int `json:"sub_board"`
	Cell     *int `json:"cell"`
}

func (that *Handlers) CreateGame(ctx echo.Context) error {
	log := that.logger.With("method", "CreateGame")

	player, err := that.game.GetOrCreatePlayer(ctx.Request().Context(), playerID(ctx))
	if err != nil {
		return respondError(ctx, log, err)
	}

	setPlayerCookie(ctx, player.ID)

	game, err := that.game.CreateGame(ctx.Request().Context(), player.ID)
	if err != nil {
		return respondError(ctx, log, err)
	}

	return ctx.JSON(http.StatusCreated, gameResponse{
		PlayerID: player.ID,
		Mark:     entity.PlayerX,
		Game:     game.Snapshot(),
	})
}

func (that *Handlers) JoinGame(ctx echo.Context) error {
	log := that.logger.With("method", "JoinGame")

	player, err := that.game.GetOrCreatePlayer(ctx.Request().Context(), playerID(ctx))
	if err != nil {
		return respondError(ctx, log, err)
	}

	setPlayerCookie(ctx, player.ID)

	game, mark, err := that.game.JoinGame(ctx.Request().Context(), ctx.Param("code"), player.ID)
	if err != nil {
		return respondError(ctx, log, err)
	}

	return ctx.JSON(http.StatusOK, gameResponse{
		PlayerID: player.ID,
		Mark:     mark,
		Game:     game.Snapshot(),
	})
}

func (that *Handlers) MakeMove(ctx echo.Context) error {
	log := that.logger.With("method", "MakeMove")

	id, err := requirePlayer(ctx)
	if err != nil {
		return respondError(ctx, log, err)
	}

	var req moveRequest
	if err = ctx.Bind(&req); err != nil || req.SubBoard == nil || req.Cell == nil {
		return respondError(ctx, log, apperror.ErrInvalidRequest)
	}

	game, err := that.game.MakeMove(ctx.Request().Context(), ctx.Param("code"), id, *req.SubBoard, *req.Cell)
	if err != nil {
		return respondError(ctx, log, err)
	}

	return ctx.JSON(http.StatusOK, gameResponse{Mark: game.MarkOf(id), Game: game.Snapshot()})
}

func (that *Handlers) Resign(ctx echo.Context) error {
	log := that.logger.With("method", "Resign")

	id, err := requirePlayer(ctx)
	if err != nil {
		return respondError(ctx, log, err)
	}

	game, err := that.game.Resign(ctx.Request().Context(), ctx.Param("code"), id)
	if err != nil {
		return respondError(ctx, log, err)
	}

	return ctx.JSON(http.StatusOK, gameResponse{Mark: game.MarkOf(id), Game: game.Snapshot()})
}

func (that *Handlers) GetGame(ctx echo.Context) error {
	log := that.logger.With("method", "GetGame")

	game, err := that.game.GetGame(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return respondError(ctx, log, err)
	}

	return ctx.JSON(http.StatusOK, gameResponse{Mark: game.MarkOf(playerID(ctx)), Game: game.Snapshot()})
}

func (that *Handlers) PlayerStats(ctx echo.Context) error {
	log := that.logger.With("method", "PlayerStats")

	id, err := requirePlayer(ctx)
	if err != nil {
		return respondError(ctx, log, err)
	}

	stats, err := that.stats.GetPlayerStats(ctx.Request().Context(), id)
	if err != nil {
		return respondError(ctx, log, err)
	}

	return ctx.JSON(http.StatusOK, stats)
}

func (that *Handlers) GlobalStats(ctx echo.Context) error {
	log := that.logger.With("method", "GlobalStats")

	stats, err := that.game.GlobalStats(ctx.Request().Context())
	if err != nil {
		return respondError(ctx, log, err)
	}

	return ctx.JSON(http.StatusOK, stats)
}

// playerID - the caller's identity from the header, falling back to the cookie.
func playerID(ctx echo.Context) string {
	if id := ctx.Request().Header.Get(PlayerHeader); id != "" {
		return id
	}

	cookie, err := ctx.Cookie(PlayerCookie)
	if err != nil {
		return ""
	}

	return cookie.Value
}

func requirePlayer(ctx echo.Context) (string, error) {
	id := playerID(ctx)
	if id == "" {
		return "", apperror.ErrInvalidRequest
	}

	return id, nil
}

func setPlayerCookie(ctx echo.Context, id string) {
	ctx.SetCookie(&http.Cookie{
		Name:     PlayerCookie,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().Add(playerCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func asAppError(err error) (*apperror.Error, bool) {
	var appErr *apperror.Error
	ok := errors.As(err, &appErr)

	return appErr, ok
}
