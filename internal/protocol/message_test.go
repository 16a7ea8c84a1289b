package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMove(t *testing.T) {
	// Given: an accepted local move
	move := Move{BoardIdx: 4, CellIdx: 7, Mark: "X"}

	// When: it is serialized
	payload, err := EncodeMove(move)
	require.NoError(t, err)

	// Then: the wire shape carries the position and the asserted mark
	assert.JSONEq(t, `{"type":"move","boardIdx":4,"cellIdx":7,"mark":"X"}`, string(payload))
}

func TestEncodeReset(t *testing.T) {
	payload, err := EncodeReset()
	require.NoError(t, err)

	assert.JSONEq(t, `{"type":"reset"}`, string(payload))
}

func TestDecode(t *testing.T) {
	t.Run("Round-trips a move", func(t *testing.T) {
		// Given: an encoded move
		payload, err := EncodeMove(Move{BoardIdx: 0, CellIdx: 8, Mark: "O"})
		require.NoError(t, err)

		// When: it is decoded
		msg, err := Decode(payload)
		require.NoError(t, err)

		// Then: the same variant comes back
		assert.Equal(t, Move{BoardIdx: 0, CellIdx: 8, Mark: "O"}, msg)
	})

	t.Run("Accepts a move without a mark", func(t *testing.T) {
		// Given: the bare wire shape from a peer that infers marks locally
		msg, err := Decode([]byte(`{"type":"move","boardIdx":1,"cellIdx":2}`))
		require.NoError(t, err)

		assert.Equal(t, Move{BoardIdx: 1, CellIdx: 2}, msg)
	})

	t.Run("Round-trips a reset", func(t *testing.T) {
		payload, err := EncodeReset()
		require.NoError(t, err)

		msg, err := Decode(payload)
		require.NoError(t, err)

		assert.Equal(t, Reset{}, msg)
	})

	t.Run("Ignores unknown message types", func(t *testing.T) {
		_, err := Decode([]byte(`{"type":"chat","text":"hello"}`))

		assert.ErrorIs(t, err, ErrIgnoreMessage)
	})

	t.Run("Ignores non-object payloads", func(t *testing.T) {
		for _, payload := range []string{`"move"`, `42`, `[1,2,3]`, `not json at all`} {
			_, err := Decode([]byte(payload))

			assert.ErrorIs(t, err, ErrIgnoreMessage, "payload %s", payload)
		}
	})

	t.Run("Ignores a move without a position", func(t *testing.T) {
		_, err := Decode([]byte(`{"type":"move","mark":"X"}`))

		assert.ErrorIs(t, err, ErrIgnoreMessage)
	})
}
