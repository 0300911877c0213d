package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/rocketscienceinc/nines-backend/internal/apperror"
	"github.com/rocketscienceinc/nines-backend/internal/broadcast"
	"github.com/rocketscienceinc/nines-backend/internal/entity"
	"github.com/rocketscienceinc/nines-backend/internal/pkg"
)

const (
	playerQuery  = "player_id"
	playerHeader = "X-Player-ID"
	playerCookie = "player_id"
)

type uGame interface {
	GetGame(ctx context.Context, code string) (*entity.Game, error)
	MakeMove(ctx context.Context, code, playerID string, subBoard, cell int) (*entity.Game, error)
	Resign(ctx context.Context, code, playerID string) (*entity.Game, error)
}

type subscriber interface {
	Subscribe(ctx context.Context, code string) (*broadcast.Subscription, error)
}

type handlerFunc func(ctx context.Context, sess *session, message *Message) error

type Server struct {
	logger *slog.Logger

	uGame      uGame
	subscriber subscriber
	upgrader   websocket.Upgrader

	handlers map[string]handlerFunc
}

func New(logger *slog.Logger, uGame uGame, subscriber subscriber) *Server {
	server := &Server{
		logger:     logger.With("component", "websocket"),
		uGame:      uGame,
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},

		handlers: make(map[string]handlerFunc),
	}

	server.handlers[actionMove] = server.handleMove
	server.handlers[actionResign] = server.handleResign
	server.handlers[actionState] = server.handleState

	return server
}

// HandleGame upgrades a participant's request on /ws/games/:code and streams the game until either side hangs up.
// The subscription is opened before the state is read, so no change between the two is lost.
func (that *Server) HandleGame(ctx echo.Context) error {
	log := that.logger.With("method", "HandleGame")

	code := pkg.NormalizeCode(ctx.Param("code"))
	if !pkg.ValidCode(code) {
		return ctx.JSON(http.StatusBadRequest, errorPayload(apperror.ErrInvalidCode))
	}

	playerID := requestPlayer(ctx.Request())
	if playerID == "" {
		return ctx.JSON(http.StatusBadRequest, errorPayload(apperror.ErrInvalidRequest))
	}

	streamCtx, cancel := context.WithCancel(ctx.Request().Context())
	defer cancel()

	sub, err := that.subscriber.Subscribe(streamCtx, code)
	if err != nil {
		log.Error("failed to subscribe", "code", code, "error", err)
		return ctx.JSON(http.StatusInternalServerError, errorPayload(err))
	}
	defer sub.Close()

	game, err := that.uGame.GetGame(streamCtx, code)
	if err != nil {
		return ctx.JSON(statusOf(err), errorPayload(err))
	}

	if !game.IsParticipant(playerID) {
		return ctx.JSON(http.StatusForbidden, errorPayload(apperror.ErrNotParticipant))
	}

	conn, err := that.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader has already replied to the client
		log.Warn("failed to upgrade connection", "error", err)
		return nil
	}

	sess := newSession(conn, code, playerID)
	defer sess.close(websocket.CloseNormalClosure, "")

	log = log.With("code", code)
	log.Info("websocket connection established")

	snapshot := game.Snapshot()
	sess.mirror.Load(snapshot)

	if err = sess.send(actionState, ResponsePayload{Mark: game.MarkOf(playerID), Game: snapshot}); err != nil {
		log.Warn("failed to send initial state", "error", err)
		return nil
	}

	go that.forward(streamCtx, cancel, sess, sub)

	that.readLoop(streamCtx, sess)
	cancel()

	log.Info("websocket connection closed", "dropped_events", sub.Dropped())

	return nil
}

// forward relays broadcast events that are newer than what the connection already holds.
func (that *Server) forward(ctx context.Context, cancel context.CancelFunc, sess *session, sub *broadcast.Subscription) {
	log := that.logger.With("method", "forward", "code", sess.code)

	defer cancel()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sess.ping(); err != nil {
				log.Debug("ping failed", "error", err)
				return
			}
		case event, ok := <-sub.Events():
			if !ok {
				return
			}

			if !sess.mirror.Apply(event) {
				continue
			}

			if err := sess.send(actionEvent, ResponsePayload{Event: event}); err != nil {
				log.Debug("failed to forward event", "error", err)
				return
			}
		}
	}
}

// readLoop dispatches client messages until the connection fails or ctx ends.
func (that *Server) readLoop(ctx context.Context, sess *session) {
	log := that.logger.With("method", "readLoop", "code", sess.code)

	sess.conn.SetReadLimit(maxMessageSize)
	_ = sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// a cancelled stream unblocks the pending read
	go func() {
		<-ctx.Done()
		_ = sess.conn.SetReadDeadline(time.Now())
	}()

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("connection read failed", "error", err)
			}

			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			if err = sess.sendError(actionError, apperror.ErrInvalidRequest); err != nil {
				return
			}

			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			if err = sess.sendError(message.Action, apperror.ErrInvalidRequest); err != nil {
				return
			}

			continue
		}

		if err = handler(ctx, sess, &message); err != nil {
			log.Debug("handler failed", "action", message.Action, "error", err)
			return
		}
	}
}

func requestPlayer(req *http.Request) string {
	if id := req.URL.Query().Get(playerQuery); id != "" {
		return id
	}

	if id := req.Header.Get(playerHeader); id != "" {
		return id
	}

	cookie, err := req.Cookie(playerCookie)
	if err != nil {
		return ""
	}

	return cookie.Value
}

func statusOf(err error) int {
	switch apperror.KindOf(err) {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindInvalid:
		return http.StatusBadRequest
	case apperror.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
