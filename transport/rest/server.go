package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 10 * time.Second

type socketHandler interface {
	HandleGame(ctx echo.Context) error
}

type Server struct {
	logger *slog.Logger
	echo   *echo.Echo
}

func New(logger *slog.Logger, handlers *Handlers, socket socketHandler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	e.GET("/ping", ping)

	api := e.Group("/api")
	api.POST("/games", handlers.CreateGame)
	api.GET("/games/:code", handlers.GetGame)
	api.POST("/games/:code/join", handlers.JoinGame)
	api.POST("/games/:code/move", handlers.MakeMove)
	api.POST("/games/:code/resign", handlers.Resign)
	api.GET("/player/stats", handlers.PlayerStats)
	api.GET("/stats/global", handlers.GlobalStats)

	if socket != nil {
		e.GET("/ws/games/:code", socket.HandleGame)
	}

	return &Server{
		logger: logger.With("component", "http_server"),
		echo:   e,
	}
}

func (that *Server) Handler() http.Handler {
	return that.echo
}

// Start serves on port until ctx is done, then shuts down gracefully.
func (that *Server) Start(ctx context.Context, port string) error {
	log := that.logger.With("method", "Start")

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := that.echo.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shut down server", "error", err)
		}
	}()

	that.echo.Server.ReadTimeout = 10 * time.Second
	that.echo.Server.IdleTimeout = 30 * time.Second

	if err := that.echo.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	log := logger.With("component", "http")

	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"http_method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}

			log.Debug("request", attrs...)

			return nil
		},
	})
}
