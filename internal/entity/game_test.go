package entity

import (
	"testing"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGame(t *testing.T) {
	// Given/When: a fresh game
	game := NewGame("123")

	// Then: all cells are empty, X moves first, no board is forced
	assert.Equal(t, "123", game.ID)
	assert.Equal(t, PlayerX, game.Turn)
	assert.Nil(t, game.Forced)
	assert.Equal(t, StatusOngoing, game.Status)

	for board := 0; board < BoardSize; board++ {
		assert.Equal(t, EmptyCell, game.Big[board])
		for cell := 0; cell < BoardSize; cell++ {
			assert.Equal(t, EmptyCell, game.Boards[board][cell])
		}
	}
}

func TestGame_Reset(t *testing.T) {
	// Given: a game mid-way through a match
	game := NewGame("123")
	game.Boards[4][0] = PlayerX
	game.Big[4] = PlayerX
	forced := 2
	game.Forced = &forced
	game.Turn = PlayerO
	game.Winner = PlayerX
	game.Status = StatusFinished

	// When: the game is reset
	game.Reset()

	// Then: it matches a freshly created game with the same ID
	assert.Equal(t, NewGame("123"), game)
}

func TestGameStatusMethods(t *testing.T) {
	t.Run("IsFinished returns true when game status is finished", func(t *testing.T) {
		game := &Game{Status: StatusFinished}

		assert.True(t, game.IsFinished())
	})

	t.Run("IsOngoing returns true when game status is ongoing", func(t *testing.T) {
		game := &Game{Status: StatusOngoing}

		assert.True(t, game.IsOngoing())
	})

	t.Run("IsWaiting returns true when game status is waiting", func(t *testing.T) {
		game := &Game{Status: StatusWaiting}

		assert.True(t, game.IsWaiting())
	})
}

func TestGame_ConfirmOngoingState(t *testing.T) {
	t.Run("Returns nil when game is ongoing", func(t *testing.T) {
		game := &Game{Status: StatusOngoing}

		assert.NoError(t, game.ConfirmOngoingState())
	})

	t.Run("Returns ErrGameIsNotStarted when game is waiting", func(t *testing.T) {
		game := &Game{Status: StatusWaiting}

		assert.ErrorIs(t, game.ConfirmOngoingState(), apperror.ErrGameIsNotStarted)
	})

	t.Run("Returns ErrGameFinished when game is finished", func(t *testing.T) {
		game := &Game{Status: StatusFinished}

		assert.ErrorIs(t, game.ConfirmOngoingState(), apperror.ErrGameFinished)
	})

	t.Run("Returns error for unknown game status", func(t *testing.T) {
		game := &Game{Status: "unknown"}

		err := game.ConfirmOngoingState()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown game status")
	})
}

func TestGame_IsBoardSettled(t *testing.T) {
	// Given: a game where board 3 ended in a tie
	game := NewGame("")
	game.Big[3] = PlayerTie

	// Then: the tie slot counts as settled
	assert.True(t, game.IsBoardSettled(3))
	assert.False(t, game.IsBoardSettled(4))
}
