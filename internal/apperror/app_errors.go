package apperror

import "errors"

// Code - stable machine-readable reason sent to clients.
type Code string

// Kind groups codes by how a boundary should treat them.
type Kind int

const (
	KindInternal Kind = iota
	KindRejected
	KindNotFound
	KindForbidden
	KindConflict
	KindInvalid
)

const (
	CodeGameAlreadyOver        Code = "GAME_ALREADY_OVER"
	CodeNotYourTurn            Code = "NOT_YOUR_TURN"
	CodeOutOfRange             Code = "OUT_OF_RANGE"
	CodeSubBoardAlreadyDecided Code = "SUB_BOARD_ALREADY_DECIDED"
	CodeCellOccupied           Code = "CELL_OCCUPIED"
	CodeWrongSubBoard          Code = "WRONG_SUB_BOARD"

	CodeGameNotFound   Code = "GAME_NOT_FOUND"
	CodePlayerNotFound Code = "PLAYER_NOT_FOUND"
	CodeNotParticipant Code = "NOT_A_PARTICIPANT"
	CodeGameNotWaiting Code = "GAME_NOT_WAITING"
	CodeGameNotActive  Code = "GAME_NOT_ACTIVE"
	CodeGameExists     Code = "GAME_ALREADY_EXISTS"
	CodeGameConflict   Code = "GAME_CHANGED"

	CodeInvalidMark    Code = "INVALID_MARK"
	CodeInvalidCode    Code = "INVALID_CODE"
	CodeInvalidRequest Code = "INVALID_REQUEST"

	CodeInternal Code = "INTERNAL"
)

// Error is a client-facing error with a stable code and a human-readable message.
type Error struct {
	Code    Code
	Kind    Kind
	Message string
}

func (that *Error) Error() string {
	return that.Message
}

func newError(kind Kind, code Code, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

// move rejections, in the order the engine checks them.
var (
	ErrGameAlreadyOver        = newError(KindRejected, CodeGameAlreadyOver, "game is already over")
	ErrNotYourTurn            = newError(KindRejected, CodeNotYourTurn, "it's not your turn")
	ErrOutOfRange             = newError(KindRejected, CodeOutOfRange, "sub-board or cell index is out of range")
	ErrSubBoardAlreadyDecided = newError(KindRejected, CodeSubBoardAlreadyDecided, "sub-board is already decided")
	ErrCellOccupied           = newError(KindRejected, CodeCellOccupied, "cell is already occupied")
	ErrWrongSubBoard          = newError(KindRejected, CodeWrongSubBoard, "move must be played in the active sub-board")
)

var (
	ErrGameNotFound      = newError(KindNotFound, CodeGameNotFound, "game not found")
	ErrPlayerNotFound    = newError(KindNotFound, CodePlayerNotFound, "player not found")
	ErrNotParticipant    = newError(KindForbidden, CodeNotParticipant, "player is not a participant of this game")
	ErrGameNotWaiting    = newError(KindConflict, CodeGameNotWaiting, "game is not available")
	ErrGameNotActive     = newError(KindConflict, CodeGameNotActive, "game is not active")
	ErrGameAlreadyExists = newError(KindConflict, CodeGameExists, "game already exists")
	ErrGameConflict      = newError(KindConflict, CodeGameConflict, "game was changed by another request, reload and retry")

	ErrInvalidMark    = newError(KindInvalid, CodeInvalidMark, "mark must be X or O")
	ErrInvalidCode    = newError(KindInvalid, CodeInvalidCode, "game code is malformed")
	ErrInvalidRequest = newError(KindInvalid, CodeInvalidRequest, "request is malformed")
)

// CodeOf returns the reason code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	return CodeInternal
}

// KindOf returns the kind carried by err, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	return KindInternal
}

// IsRejection reports whether err is an expected move rejection.
func IsRejection(err error) bool {
	return KindOf(err) == KindRejected
}
