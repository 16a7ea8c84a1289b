package apperror

import "errors"

var (
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrBoardSettled     = errors.New("board is already settled")
	ErrWrongBoard       = errors.New("move must target the forced board")
	ErrInvalidCell      = errors.New("invalid cell index")
	ErrInvalidBoard     = errors.New("invalid board index")
	ErrGameFull         = errors.New("game already has two players")
)
