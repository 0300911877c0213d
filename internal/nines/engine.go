package nines

import (
	"fmt"

	"github.com/rocketscienceinc/nines-backend/internal/apperror"
	"github.com/rocketscienceinc/nines-backend/internal/entity"
)

// AppliedMove describes the effect of an accepted move.
type AppliedMove struct {
	Move entity.Move

	// SubBoardResult is the resolution of the played sub-board after the move (EmptyCell if still open).
	SubBoardResult entity.Mark
	GameOver       bool
	WinnerMark     entity.Mark
	NextSubBoard   *int
}

// Engine validates and applies moves against a game state. It is synchronous and does no I/O.
type Engine struct {
	state *entity.GameState
}

// New wraps state; accepted moves mutate it in place.
func New(state *entity.GameState) *Engine {
	return &Engine{state: state}
}

// ApplyMove places mark at (subBoard, cell). Rejections are returned as apperror values;
// the state is untouched unless the move is accepted.
func (that *Engine) ApplyMove(subBoard, cell int, mark entity.Mark) (*AppliedMove, error) {
	if !mark.IsPlayer() {
		return nil, fmt.Errorf("%w: %q", apperror.ErrInvalidMark, mark)
	}

	if err := that.validateMove(subBoard, cell, mark); err != nil {
		return nil, err
	}

	board := &that.state.Board
	board.SubBoards[subBoard][cell] = mark

	if winner := entity.LineWinner(board.SubBoards[subBoard]); winner != entity.EmptyCell {
		board.SubBoardWinners[subBoard] = winner
	} else if board.IsSubBoardFull(subBoard) {
		board.SubBoardWinners[subBoard] = entity.PlayerTie
	}

	that.updateGameStatus(mark, cell)

	applied := &AppliedMove{
		Move:           entity.Move{SubBoard: subBoard, Cell: cell, Mark: mark},
		SubBoardResult: board.SubBoardWinners[subBoard],
		GameOver:       that.state.GameOver,
		WinnerMark:     that.state.WinnerMark,
	}

	if that.state.ActiveSubBoard != nil {
		next := *that.state.ActiveSubBoard
		applied.NextSubBoard = &next
	}

	return applied, nil
}

// Resign ends the game in favor of the other mark, whatever the board looks like.
func (that *Engine) Resign(mark entity.Mark) error {
	if !mark.IsPlayer() {
		return fmt.Errorf("%w: %q", apperror.ErrInvalidMark, mark)
	}

	if that.state.GameOver {
		return apperror.ErrGameAlreadyOver
	}

	that.state.GameOver = true
	that.state.WinnerMark = mark.Opponent()
	that.state.ActiveSubBoard = nil

	return nil
}

// validateMove - checks preconditions in order, the first failure wins.
func (that *Engine) validateMove(subBoard, cell int, mark entity.Mark) error {
	board := &that.state.Board

	switch {
	case that.state.GameOver:
		return apperror.ErrGameAlreadyOver
	case that.state.Turn != mark:
		return apperror.ErrNotYourTurn
	case !inRange(subBoard) || !inRange(cell):
		return apperror.ErrOutOfRange
	case board.IsResolved(subBoard):
		return apperror.ErrSubBoardAlreadyDecided
	case board.SubBoards[subBoard][cell] != entity.EmptyCell:
		return apperror.ErrCellOccupied
	case that.state.ActiveSubBoard != nil && *that.state.ActiveSubBoard != subBoard:
		return apperror.ErrWrongSubBoard
	}

	return nil
}

// updateGameStatus - overall result first; the next sub-board is only computed while the game goes on.
func (that *Engine) updateGameStatus(mark entity.Mark, cell int) {
	board := &that.state.Board

	if winner := entity.LineWinner(board.SubBoardWinners); winner != entity.EmptyCell {
		that.finish(winner)
		return
	}

	if board.AllResolved() {
		that.finish(entity.EmptyCell)
		return
	}

	if board.IsResolved(cell) {
		that.state.ActiveSubBoard = nil
	} else {
		next := cell
		that.state.ActiveSubBoard = &next
	}

	that.state.Turn = mark.Opponent()
}

func (that *Engine) finish(winner entity.Mark) {
	that.state.GameOver = true
	that.state.WinnerMark = winner
	that.state.ActiveSubBoard = nil
}

func inRange(index int) bool {
	return index >= 0 && index < entity.BoardSize
}
