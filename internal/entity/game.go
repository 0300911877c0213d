package entity

import (
	"strconv"
	"time"
)

const (
	StatusWaiting   = "waiting"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

const (
	EndReasonWin     = "win"
	EndReasonDraw    = "draw"
	EndReasonResign  = "resign"
	EndReasonAbandon = "abandon"
)

// Move - a mark placed at a cell of a sub-board.
type Move struct {
	SubBoard int  `json:"sub_board"`
	Cell     int  `json:"cell"`
	Mark     Mark `json:"mark"`
}

// GameState is everything the engine needs to validate and apply moves.
type GameState struct {
	Board          Board `json:"board"`
	Turn           Mark  `json:"turn"`
	ActiveSubBoard *int  `json:"active_sub_board"`
	GameOver       bool  `json:"game_over"`
	WinnerMark     Mark  `json:"winner_mark"`
}

func NewGameState() GameState {
	return GameState{Turn: PlayerX}
}

// Clone returns a deep copy; the board arrays copy by value.
func (that GameState) Clone() GameState {
	if that.ActiveSubBoard != nil {
		active := *that.ActiveSubBoard
		that.ActiveSubBoard = &active
	}

	return that
}

// Game is the authoritative session: an engine state bound to two identities and a join code.
type Game struct {
	Code    string `json:"code"`
	Player1 string `json:"player1_id"`
	Player2 string `json:"player2_id,omitempty"`
	Status  string `json:"status"`

	State GameState `json:"state"`

	EndReason string `json:"end_reason,omitempty"`
	MoveCount int    `json:"move_count"`
	Revision  int64  `json:"revision"`
	LastMove  *Move  `json:"last_move,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	LastMoveAt *time.Time `json:"last_move_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

func NewGame(code, creatorID string, now time.Time) *Game {
	return &Game{
		Code:      code,
		Player1:   creatorID,
		Status:    StatusWaiting,
		State:     NewGameState(),
		CreatedAt: now,
	}
}

// Clone returns a copy that can be mutated without touching the original.
func (that *Game) Clone() *Game {
	clone := *that
	clone.State = that.State.Clone()

	if that.LastMove != nil {
		lastMove := *that.LastMove
		clone.LastMove = &lastMove
	}

	clone.StartedAt = cloneTime(that.StartedAt)
	clone.LastMoveAt = cloneTime(that.LastMoveAt)
	clone.EndedAt = cloneTime(that.EndedAt)

	return &clone
}

func (that *Game) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Game) IsActive() bool {
	return that.Status == StatusActive
}

func (that *Game) IsCompleted() bool {
	return that.Status == StatusCompleted
}

// MarkOf returns the mark held by playerID, or EmptyCell if they are not seated.
func (that *Game) MarkOf(playerID string) Mark {
	switch {
	case playerID == "":
		return EmptyCell
	case that.Player1 == playerID:
		return PlayerX
	case that.Player2 == playerID:
		return PlayerO
	default:
		return EmptyCell
	}
}

func (that *Game) IsParticipant(playerID string) bool {
	return that.MarkOf(playerID) != EmptyCell
}

// PlayerWith returns the identity seated with mark.
func (that *Game) PlayerWith(mark Mark) string {
	switch mark {
	case PlayerX:
		return that.Player1
	case PlayerO:
		return that.Player2
	default:
		return ""
	}
}

// Finish moves the game into the terminal state.
func (that *Game) Finish(reason string, now time.Time) {
	that.Status = StatusCompleted
	that.EndReason = reason
	that.EndedAt = &now
}

// DurationSeconds is the time between the second player joining and the end of the game.
func (that *Game) DurationSeconds() int64 {
	if that.StartedAt == nil || that.EndedAt == nil {
		return 0
	}

	seconds := int64(that.EndedAt.Sub(*that.StartedAt).Seconds())
	if seconds < 0 {
		return 0
	}

	return seconds
}

// OutcomeKey identifies the terminal transition of this game; stats use it to ignore duplicates.
func (that *Game) OutcomeKey() string {
	if that.EndedAt == nil {
		return ""
	}

	return that.Code + ":" + strconv.FormatInt(that.EndedAt.UnixNano(), 10)
}

// Outcomes maps each participant to their stats result. Empty unless the game is completed.
func (that *Game) Outcomes() map[string]string {
	if !that.IsCompleted() {
		return nil
	}

	outcomes := make(map[string]string, 2)

	switch {
	case that.State.WinnerMark == EmptyCell:
		outcomes[that.Player1] = ResultDraw
		outcomes[that.Player2] = ResultDraw
	case that.EndReason == EndReasonResign || that.EndReason == EndReasonAbandon:
		outcomes[that.PlayerWith(that.State.WinnerMark)] = ResultWin
		outcomes[that.PlayerWith(that.State.WinnerMark.Opponent())] = ResultAbandon
	default:
		outcomes[that.PlayerWith(that.State.WinnerMark)] = ResultWin
		outcomes[that.PlayerWith(that.State.WinnerMark.Opponent())] = ResultLoss
	}

	delete(outcomes, "")

	return outcomes
}

// Snapshot is the public view of the game: player identities are replaced by seat flags.
type Snapshot struct {
	Code   string        `json:"code"`
	Status string        `json:"status"`
	Seats  map[Mark]bool `json:"seats"`

	GameState

	EndReason string `json:"end_reason,omitempty"`
	MoveCount int    `json:"move_count"`
	Revision  int64  `json:"revision"`
	LastMove  *Move  `json:"last_move,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	LastMoveAt *time.Time `json:"last_move_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

func (that *Game) Snapshot() *Snapshot {
	clone := that.Clone()

	return &Snapshot{
		Code:   clone.Code,
		Status: clone.Status,
		Seats: map[Mark]bool{
			PlayerX: clone.Player1 != "",
			PlayerO: clone.Player2 != "",
		},
		GameState:  clone.State,
		EndReason:  clone.EndReason,
		MoveCount:  clone.MoveCount,
		Revision:   clone.Revision,
		LastMove:   clone.LastMove,
		CreatedAt:  clone.CreatedAt,
		StartedAt:  clone.StartedAt,
		LastMoveAt: clone.LastMoveAt,
		EndedAt:    clone.EndedAt,
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	c := *t
	return &c
}
