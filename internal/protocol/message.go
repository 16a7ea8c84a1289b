package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	TypeMove  = "move"
	TypeReset = "reset"
)

// ErrIgnoreMessage marks inbound payloads that fail schema validation:
// non-object payloads, unknown type tags, or move messages with missing
// fields. Callers drop these without touching game state.
var ErrIgnoreMessage = errors.New("message ignored")

// Move is one accepted move, sent as a position rather than a state snapshot:
// both peers replay the same deterministic rules, so the position alone keeps
// their game copies identical. Mark is the sender's asserted mark; receivers
// that predate it infer the mark from their own turn field, so it stays
// optional on the wire.
type Move struct {
	BoardIdx int    `json:"boardIdx"`
	CellIdx  int    `json:"cellIdx"`
	Mark     string `json:"mark,omitempty"`
}

// Reset asks the peer to reinitialize its game copy.
type Reset struct{}

// message is the wire envelope for both variants.
type message struct {
	Type     string `json:"type"`
	BoardIdx *int   `json:"boardIdx,omitempty"`
	CellIdx  *int   `json:"cellIdx,omitempty"`
	Mark     string `json:"mark,omitempty"`
}

// EncodeMove - serializes an accepted local move.
func EncodeMove(move Move) ([]byte, error) {
	raw := message{
		Type:     TypeMove,
		BoardIdx: &move.BoardIdx,
		CellIdx:  &move.CellIdx,
		Mark:     move.Mark,
	}

	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal move: %w", err)
	}

	return payload, nil
}

// EncodeReset - serializes a reset notification.
func EncodeReset() ([]byte, error) {
	payload, err := json.Marshal(message{Type: TypeReset})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reset: %w", err)
	}

	return payload, nil
}

// Decode - validates an inbound payload at the transport boundary and returns
// the tagged variant (Move or Reset). Anything that is not a well-formed
// variant comes back as ErrIgnoreMessage.
func Decode(payload []byte) (interface{}, error) {
	var raw message
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIgnoreMessage, err)
	}

	switch raw.Type {
	case TypeMove:
		if raw.BoardIdx == nil || raw.CellIdx == nil {
			return nil, fmt.Errorf("%w: move without position", ErrIgnoreMessage)
		}

		return Move{BoardIdx: *raw.BoardIdx, CellIdx: *raw.CellIdx, Mark: raw.Mark}, nil
	case TypeReset:
		return Reset{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrIgnoreMessage, raw.Type)
	}
}
