package ultimate

import (
	"testing"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckBoardStatus(t *testing.T) {
	t.Run("Detects every winning line for both marks", func(t *testing.T) {
		for _, mark := range []string{entity.PlayerX, entity.PlayerO} {
			for _, combo := range WinCombos {
				// Given: a board where one mark holds a complete line
				var board [entity.BoardSize]string
				for _, idx := range combo {
					board[idx] = mark
				}

				// When: checking the board status
				result := CheckBoardStatus(board)

				// Then: that mark is reported as the winner
				assert.Equal(t, mark, result, "combo %v mark %s", combo, mark)
			}
		}
	})

	t.Run("Returns tie for a full board without a line", func(t *testing.T) {
		// Given: a fully occupied board with no three-in-a-row
		board := [entity.BoardSize]string{
			entity.PlayerX, entity.PlayerO, entity.PlayerX,
			entity.PlayerO, entity.PlayerX, entity.PlayerO,
			entity.PlayerO, entity.PlayerX, entity.PlayerO,
		}

		// When: checking the board status
		result := CheckBoardStatus(board)

		// Then: the board is a tie
		assert.Equal(t, entity.PlayerTie, result)
	})

	t.Run("Returns undecided for a non-full board without a line", func(t *testing.T) {
		// Given: a board still in play
		board := [entity.BoardSize]string{
			entity.PlayerX, entity.PlayerO, entity.EmptyCell,
			entity.EmptyCell, entity.PlayerX, entity.EmptyCell,
			entity.EmptyCell, entity.EmptyCell, entity.PlayerO,
		}

		// When: checking the board status
		result := CheckBoardStatus(board)

		// Then: the board is undecided
		assert.Equal(t, entity.EmptyCell, result)
	})

	t.Run("Tie slots never complete a line on the big board", func(t *testing.T) {
		// Given: a big board where a line is filled with tie outcomes
		board := [entity.BoardSize]string{
			entity.PlayerTie, entity.PlayerTie, entity.PlayerTie,
			entity.EmptyCell, entity.EmptyCell, entity.EmptyCell,
			entity.EmptyCell, entity.EmptyCell, entity.EmptyCell,
		}

		// When: checking the board status
		result := CheckBoardStatus(board)

		// Then: no winner is reported
		assert.Equal(t, entity.EmptyCell, result)
	})

	t.Run("A win takes precedence over a fill tie", func(t *testing.T) {
		// Given: a full board whose last cell completed a line
		board := [entity.BoardSize]string{
			entity.PlayerX, entity.PlayerO, entity.PlayerO,
			entity.PlayerO, entity.PlayerX, entity.PlayerX,
			entity.PlayerO, entity.PlayerX, entity.PlayerX,
		}

		// When: checking the board status
		result := CheckBoardStatus(board)

		// Then: the diagonal win is reported, not a tie
		assert.Equal(t, entity.PlayerX, result)
	})
}

func TestMakeTurn_ForcedBoard(t *testing.T) {
	t.Run("Next move is forced to the board named by the played cell", func(t *testing.T) {
		// Given: a fresh game
		game := entity.NewGame("")

		// When: X plays cell 7 of board 4
		err := MakeTurn(game, entity.PlayerX, 4, 7)
		require.NoError(t, err)

		// Then: O is forced to board 7
		require.NotNil(t, game.Forced)
		assert.Equal(t, 7, *game.Forced)

		// And: a move outside the forced board is rejected without mutation
		err = MakeTurn(game, entity.PlayerO, 3, 0)
		require.ErrorIs(t, err, apperror.ErrWrongBoard)
		assert.Equal(t, entity.EmptyCell, game.Boards[3][0])
		assert.Equal(t, entity.PlayerO, game.Turn)
	})

	t.Run("Forced board is cleared when the target board is settled", func(t *testing.T) {
		// Given: a game where board 2 is already settled
		game := entity.NewGame("")
		game.Big[2] = entity.PlayerO

		// When: X plays cell 2, pointing at the settled board
		err := MakeTurn(game, entity.PlayerX, 4, 2)
		require.NoError(t, err)

		// Then: the opponent has free choice
		assert.Nil(t, game.Forced)
	})

	t.Run("Move into a settled board is rejected", func(t *testing.T) {
		// Given: a game where board 5 is settled and no board is forced
		game := entity.NewGame("")
		game.Big[5] = entity.PlayerX

		// When: X plays into the settled board
		err := MakeTurn(game, entity.PlayerX, 5, 0)

		// Then: the move is rejected
		require.ErrorIs(t, err, apperror.ErrBoardSettled)
	})
}

func TestMakeTurn_Validation(t *testing.T) {
	t.Run("Rejects out-of-range board index with zero mutation", func(t *testing.T) {
		// Given: a fresh game
		game := entity.NewGame("")
		want := *game

		// When: a move names a board outside [0,8]
		err := MakeTurn(game, entity.PlayerX, 9, 0)

		// Then: the move is rejected and nothing changed
		require.ErrorIs(t, err, apperror.ErrInvalidBoard)
		assert.Equal(t, want, *game)
	})

	t.Run("Rejects out-of-range cell index", func(t *testing.T) {
		game := entity.NewGame("")

		err := MakeTurn(game, entity.PlayerX, 0, -1)

		require.ErrorIs(t, err, apperror.ErrInvalidCell)
	})

	t.Run("Rejects an occupied cell with zero mutation", func(t *testing.T) {
		// Given: a game where board 4 cell 4 is taken
		game := entity.NewGame("")
		require.NoError(t, MakeTurn(game, entity.PlayerX, 4, 4))
		want := *game

		// When: O plays the same cell
		err := MakeTurn(game, entity.PlayerO, 4, 4)

		// Then: the move is rejected and the state is untouched
		require.ErrorIs(t, err, apperror.ErrCellOccupied)
		assert.Equal(t, want, *game)
	})

	t.Run("Rejects a move by the wrong mark", func(t *testing.T) {
		// Given: a fresh game where X moves first
		game := entity.NewGame("")

		// When: O tries to move
		err := MakeTurn(game, entity.PlayerO, 0, 0)

		// Then: the authority check rejects it
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
	})
}

func TestMakeTurn_TurnAlternation(t *testing.T) {
	// Given: a fresh game
	game := entity.NewGame("")

	mark := entity.PlayerX

	// When: legal moves are played first-empty-cell-first until the game finishes
	for moves := 0; moves < entity.BoardSize*entity.BoardSize && !game.IsFinished(); moves++ {
		target := -1
		if game.Forced != nil {
			target = *game.Forced
		} else {
			for board := 0; board < entity.BoardSize; board++ {
				if !game.IsBoardSettled(board) {
					target = board
					break
				}
			}
		}
		require.NotEqual(t, -1, target)

		cell := -1
		for c := 0; c < entity.BoardSize; c++ {
			if game.Boards[target][c] == entity.EmptyCell {
				cell = c
				break
			}
		}
		require.NotEqual(t, -1, cell)

		// Then: the engine's turn matches the strict alternation
		require.Equal(t, mark, game.Turn, "after %d moves", moves)
		require.NoError(t, MakeTurn(game, mark, target, cell))

		mark = toggleMark(mark)
	}

	// Then: the game ended and no further move is accepted
	require.True(t, game.IsFinished())
	require.NotEmpty(t, game.Winner)

	err := MakeTurn(game, entity.PlayerX, 0, 0)
	assert.ErrorIs(t, err, apperror.ErrGameFinished)
}

func TestMakeTurn_SmallBoardWinSettlesBigBoard(t *testing.T) {
	// Given: the move sequence (4,0)X (0,4)O (4,1)X (1,4)O (4,2)X
	game := entity.NewGame("")

	steps := []struct {
		mark  string
		board int
		cell  int
	}{
		{entity.PlayerX, 4, 0},
		{entity.PlayerO, 0, 4},
		{entity.PlayerX, 4, 1},
		{entity.PlayerO, 1, 4},
		{entity.PlayerX, 4, 2},
	}

	// When: the sequence is applied
	for _, step := range steps {
		require.NoError(t, MakeTurn(game, step.mark, step.board, step.cell))
	}

	// Then: X completed the top row of board 4, settling its big-board slot
	assert.Equal(t, entity.PlayerX, game.Big[4])
	assert.True(t, game.IsOngoing())

	// And: the last cell played was 2 and board 2 is unsettled, so O is forced there
	require.NotNil(t, game.Forced)
	assert.Equal(t, 2, *game.Forced)
	assert.Equal(t, entity.PlayerO, game.Turn)
}

func TestMakeTurn_GameWin(t *testing.T) {
	// Given: a game where X is about to settle the third board of a big-board line
	game := entity.NewGame("")
	game.Big[0] = entity.PlayerX
	game.Big[1] = entity.PlayerX
	game.Boards[2][0] = entity.PlayerX
	game.Boards[2][1] = entity.PlayerX

	// When: X completes the top row of board 2
	require.NoError(t, MakeTurn(game, entity.PlayerX, 2, 2))

	// Then: the game is finished with X as the overall winner
	assert.Equal(t, entity.PlayerX, game.Big[2])
	assert.True(t, game.IsFinished())
	assert.Equal(t, entity.PlayerX, game.Winner)
	assert.Empty(t, game.Turn)
	assert.Nil(t, game.Forced)
}

func TestMakeTurn_Determinism(t *testing.T) {
	// Given: two independent game copies
	first := entity.NewGame("")
	second := entity.NewGame("")

	steps := []struct {
		mark  string
		board int
		cell  int
	}{
		{entity.PlayerX, 4, 4},
		{entity.PlayerO, 4, 0},
		{entity.PlayerX, 0, 4},
		{entity.PlayerO, 4, 8},
		{entity.PlayerX, 8, 4},
	}

	// When: both replay the identical move sequence
	for _, step := range steps {
		require.NoError(t, MakeTurn(first, step.mark, step.board, step.cell))
		require.NoError(t, MakeTurn(second, step.mark, step.board, step.cell))
	}

	// Then: the copies are identical
	assert.Equal(t, *first, *second)
}
