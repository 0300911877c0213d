package entity

// Mark - a player's symbol, or the content of a cell / sub-board slot.
type Mark string

const (
	EmptyCell Mark = ""
	PlayerX   Mark = "X"
	PlayerO   Mark = "O"
	PlayerTie Mark = "-"
)

// BoardSize is both the number of sub-boards and the number of cells in each.
const BoardSize = 9

// WinCombos are the line triples of a 3x3 grid: rows, columns, diagonals.
var WinCombos = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

func (that Mark) IsPlayer() bool {
	return that == PlayerX || that == PlayerO
}

// Opponent returns the other player's mark.
func (that Mark) Opponent() Mark {
	switch that {
	case PlayerX:
		return PlayerO
	case PlayerO:
		return PlayerX
	default:
		return EmptyCell
	}
}

// Board holds the nine sub-boards and the resolution of each one.
// SubBoardWinners entries are EmptyCell (unresolved), PlayerX, PlayerO or PlayerTie (drawn).
type Board struct {
	SubBoards       [BoardSize][BoardSize]Mark `json:"sub_boards"`
	SubBoardWinners [BoardSize]Mark            `json:"sub_board_winners"`
}

// LineWinner returns the player owning a full line in grid, or EmptyCell.
// PlayerTie never counts as a line owner.
func LineWinner(grid [BoardSize]Mark) Mark {
	for _, combo := range WinCombos {
		a, b, c := grid[combo[0]], grid[combo[1]], grid[combo[2]]
		if a.IsPlayer() && a == b && b == c {
			return a
		}
	}

	return EmptyCell
}

func (that *Board) IsResolved(subBoard int) bool {
	return that.SubBoardWinners[subBoard] != EmptyCell
}

func (that *Board) IsSubBoardFull(subBoard int) bool {
	for _, cell := range that.SubBoards[subBoard] {
		if cell == EmptyCell {
			return false
		}
	}

	return true
}

func (that *Board) AllResolved() bool {
	for i := range that.SubBoardWinners {
		if !that.IsResolved(i) {
			return false
		}
	}

	return true
}
