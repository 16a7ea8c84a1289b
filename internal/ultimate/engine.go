package ultimate

import (
	"fmt"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
)

// WinCombos are the 8 standard tic-tac-toe lines, used for small boards and
// the big board alike.
var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// MakeTurn applies one move to the game. It either mutates the game fully or,
// on any validation error, leaves it untouched. Both the peer session and the
// REST manager go through this single entry point, so legality does not
// depend on which transport delivered the move.
func MakeTurn(gameInstance *entity.Game, mark string, board, cell int) error {
	if gameInstance.IsFinished() {
		return apperror.ErrGameFinished
	}

	if err := validateMove(gameInstance, mark, board, cell); err != nil {
		return fmt.Errorf("invalid turn: %w", err)
	}

	gameInstance.Boards[board][cell] = mark
	updateGameStatus(gameInstance, mark, board, cell)

	return nil
}

// validateMove - checks if the move is valid.
func validateMove(gameInstance *entity.Game, mark string, board, cell int) error {
	if board < 0 || board >= entity.BoardSize {
		return fmt.Errorf("%w: %d", apperror.ErrInvalidBoard, board)
	}

	if cell < 0 || cell >= entity.BoardSize {
		return fmt.Errorf("%w: %d", apperror.ErrInvalidCell, cell)
	}

	if gameInstance.Turn != mark {
		return apperror.ErrNotYourTurn
	}

	if forced := gameInstance.Forced; forced != nil && *forced != board {
		return fmt.Errorf("%w: board %d", apperror.ErrWrongBoard, *forced)
	}

	if gameInstance.IsBoardSettled(board) {
		return fmt.Errorf("%w: board %d", apperror.ErrBoardSettled, board)
	}

	if gameInstance.Boards[board][cell] != entity.EmptyCell {
		return apperror.ErrCellOccupied
	}

	return nil
}

// updateGameStatus - settles the played small board if it is decided, settles
// the whole game if the big board is decided, and advances the forced-board
// constraint and the turn.
func updateGameStatus(gameInstance *entity.Game, mark string, board, cell int) {
	if outcome := CheckBoardStatus(gameInstance.Boards[board]); outcome != entity.EmptyCell {
		gameInstance.Big[board] = outcome
	}

	switch winner := CheckBoardStatus(gameInstance.Big); winner {
	case entity.PlayerX, entity.PlayerO:
		gameInstance.Winner = winner
		gameInstance.Status = entity.StatusFinished
		gameInstance.Turn = ""
		gameInstance.Forced = nil
	case entity.PlayerTie:
		gameInstance.Winner = entity.PlayerTie
		gameInstance.Status = entity.StatusFinished
		gameInstance.Turn = ""
		gameInstance.Forced = nil
	default:
		gameInstance.Forced = nextForcedBoard(gameInstance, cell)
		gameInstance.Turn = toggleMark(mark)
	}
}

// nextForcedBoard - the cell just played names the board the opponent must
// play in, unless that board is already settled, in which case the opponent
// has free choice.
func nextForcedBoard(gameInstance *entity.Game, cell int) *int {
	if gameInstance.IsBoardSettled(cell) {
		return nil
	}

	forced := cell

	return &forced
}

func toggleMark(currentMark string) string {
	if currentMark == entity.PlayerX {
		return entity.PlayerO
	}
	return entity.PlayerX
}

// CheckBoardStatus reports the outcome of one 9-slot board: the winning mark
// if a line is completed, PlayerTie if the board is full without a line, or
// EmptyCell while undecided. Tie slots never complete a line, which matters
// when the argument is the big board.
func CheckBoardStatus(board [entity.BoardSize]string) string {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != entity.EmptyCell && a != entity.PlayerTie && a == b && b == c {
			return a
		}
	}

	for _, slot := range board {
		if slot == entity.EmptyCell {
			return entity.EmptyCell
		}
	}

	return entity.PlayerTie
}
