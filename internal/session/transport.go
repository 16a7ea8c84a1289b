package session

import (
	"context"
	"errors"
)

// ErrPeerNotReachable is the recoverable dial-failure class: the host has not
// finished registering, or its listener is not up yet. Dials failing with it
// are retried after a fixed backoff; every other failure surfaces immediately.
var ErrPeerNotReachable = errors.New("peer is not reachable yet")

// Conn is one established bidirectional data channel to the peer. Delivery is
// ordered and non-duplicating; that is a transport guarantee, the protocol on
// top adds no sequence numbers or acknowledgements.
type Conn interface {
	Send(ctx context.Context, payload []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Transport is the session-oriented channel between two participants: it
// obtains a shareable session ID from the rendezvous service, accepts one
// inbound connection (host side) or dials a peer-supplied ID (client side).
type Transport interface {
	Register(ctx context.Context) (string, error)
	Accept(ctx context.Context) (Conn, error)
	Dial(ctx context.Context, sessionID string) (Conn, error)
	Close() error
}
