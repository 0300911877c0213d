package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/nines-backend/internal/apperror"
	"github.com/rocketscienceinc/nines-backend/internal/entity"
)

const (
	actionMove   = "game:move"
	actionResign = "game:resign"
	actionState  = "game:state"
	actionEvent  = "game:event"
	actionError  = "error"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type MovePayload struct {
	SubBoard *int `json:"sub_board"`
	Cell     *int `json:"cell"`
}

type ErrorPayload struct {
	Code    apperror.Code `json:"code"`
	Message string        `json:"message"`
}

type ResponsePayload struct {
	Mark  entity.Mark      `json:"mark,omitempty"`
	Game  *entity.Snapshot `json:"game,omitempty"`
	Event *entity.Event    `json:"event,omitempty"`
	Error *ErrorPayload    `json:"error,omitempty"`
}

func errorPayload(err error) *ErrorPayload {
	if apperror.KindOf(err) == apperror.KindInternal {
		return &ErrorPayload{Code: apperror.CodeInternal, Message: "internal server error"}
	}

	return &ErrorPayload{Code: apperror.CodeOf(err), Message: err.Error()}
}
