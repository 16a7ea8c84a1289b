package entity

import (
	"fmt"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/apperror"
)

const (
	StatusFinished = "finished"
	StatusOngoing  = "ongoing"
	StatusWaiting  = "waiting"

	PlayerX   = "X"
	PlayerO   = "O"
	PlayerTie = "-"

	EmptyCell = ""

	// BoardSize is the number of small boards and the number of cells in each of them.
	BoardSize = 9
)

// Game holds the full state of an ultimate tic-tac-toe match: nine small
// boards, the big board of settled outcomes, the forced-board constraint and
// the turn bookkeeping. A Game value is exclusively owned by one session (or
// one server-side manager call); copies on two peers converge by replaying
// the same move sequence.
type Game struct {
	ID     string                       `json:"id,omitempty"`
	Boards [BoardSize][BoardSize]string `json:"boards"`
	Big    [BoardSize]string            `json:"big_board"`
	// Forced, when set, is the only small board the next move may target.
	Forced *int   `json:"forced_board,omitempty"`
	Turn   string `json:"player_turn"`
	Winner string `json:"winner,omitempty"`
	Status string `json:"status"`
}

func NewGame(id string) *Game {
	game := &Game{ID: id}
	game.Reset()

	return game
}

// Reset - reinitializes the match in place: all cells empty, X to move, no
// forced board. The ID survives a reset.
func (that *Game) Reset() {
	that.Boards = [BoardSize][BoardSize]string{}
	that.Big = [BoardSize]string{}
	that.Forced = nil
	that.Turn = PlayerX
	that.Winner = ""
	that.Status = StatusOngoing
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Game) IsOngoing() bool {
	return that.Status == StatusOngoing
}

func (that *Game) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Game) ConfirmOngoingState() error {
	switch {
	case that.IsWaiting():
		return apperror.ErrGameIsNotStarted
	case that.IsFinished():
		return apperror.ErrGameFinished
	case that.IsOngoing():
		return nil
	default:
		return fmt.Errorf("unknown game status: %s", that.Status)
	}
}

// IsBoardSettled reports whether the big-board slot for the given small board
// already holds a final outcome.
func (that *Game) IsBoardSettled(board int) bool {
	return that.Big[board] != EmptyCell
}
