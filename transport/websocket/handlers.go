package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/nines-backend/internal/apperror"
)

// Handlers return an error only when the connection is unusable; game errors go back to the client.

func (that *Server) handleMove(ctx context.Context, sess *session, message *Message) error {
	log := that.logger.With("method", "handleMove", "code", sess.code)

	var payload MovePayload
	if err := json.Unmarshal(message.Payload, &payload); err != nil || payload.SubBoard == nil || payload.Cell == nil {
		return sess.sendError(message.Action, apperror.ErrInvalidRequest)
	}

	game, err := that.uGame.MakeMove(ctx, sess.code, sess.playerID, *payload.SubBoard, *payload.Cell)
	if err != nil {
		logFailure(log, "failed to make move", err)

		return sess.sendError(message.Action, err)
	}

	snapshot := game.Snapshot()
	sess.mirror.Load(snapshot)

	if err = sess.send(message.Action, ResponsePayload{Mark: game.MarkOf(sess.playerID), Game: snapshot}); err != nil {
		return fmt.Errorf("failed to send move result: %w", err)
	}

	return nil
}

func (that *Server) handleResign(ctx context.Context, sess *session, message *Message) error {
	log := that.logger.With("method", "handleResign", "code", sess.code)

	game, err := that.uGame.Resign(ctx, sess.code, sess.playerID)
	if err != nil {
		logFailure(log, "failed to resign", err)

		return sess.sendError(message.Action, err)
	}

	snapshot := game.Snapshot()
	sess.mirror.Load(snapshot)

	if err = sess.send(message.Action, ResponsePayload{Mark: game.MarkOf(sess.playerID), Game: snapshot}); err != nil {
		return fmt.Errorf("failed to send resign result: %w", err)
	}

	return nil
}

// handleState re-reads the authoritative state, for clients that suspect they missed an event.
func (that *Server) handleState(ctx context.Context, sess *session, message *Message) error {
	game, err := that.uGame.GetGame(ctx, sess.code)
	if err != nil {
		return sess.sendError(message.Action, err)
	}

	snapshot := game.Snapshot()
	sess.mirror.Load(snapshot)

	if err = sess.send(message.Action, ResponsePayload{Mark: game.MarkOf(sess.playerID), Game: sess.mirror.Snapshot()}); err != nil {
		return fmt.Errorf("failed to send state: %w", err)
	}

	return nil
}

// logFailure logs rule rejections at debug and internal failures at error.
func logFailure(log *slog.Logger, msg string, err error) {
	switch {
	case apperror.IsRejection(err):
		log.Debug("request rejected", "reason", apperror.CodeOf(err))
	case apperror.KindOf(err) == apperror.KindInternal:
		log.Error(msg, "error", err)
	}
}
