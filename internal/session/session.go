package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/protocol"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/ultimate"
)

// Phase is the connection lifecycle state of a session.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseConnecting   Phase = "connecting"
	PhaseRegistered   Phase = "registered"
	PhaseAwaitingPeer Phase = "awaiting_peer"
	PhaseDialing      Phase = "dialing"
	PhaseConnected    Phase = "connected"
	PhaseClosed       Phase = "closed"
)

type Role string

const (
	// RoleHost accepted the inbound connection; it plays X and moves first.
	RoleHost Role = "host"
	// RoleClient dialed out; it plays O.
	RoleClient Role = "client"
)

const defaultDialBackoff = 1500 * time.Millisecond

var (
	ErrNotConnected   = errors.New("session is not connected")
	ErrAlreadyStarted = errors.New("session is already started")
	ErrSessionClosed  = errors.New("session is closed")
)

// Update is delivered to the presentation layer after every state change:
// an accepted move (local or remote), a reset, a phase transition, or a
// terminal failure (Err set, Phase closed).
type Update struct {
	Phase Phase
	Game  entity.Game
	Err   error
}

// Session owns exactly one game copy and at most one transport connection.
// A session is single-use: once closed, a new game requires a new Session.
type Session struct {
	logger      *slog.Logger
	transport   Transport
	dialBackoff time.Duration
	onUpdate    func(Update)

	mu        sync.Mutex
	phase     Phase
	role      Role
	mark      string
	sessionID string
	game      *entity.Game
	conn      Conn
	cancel    context.CancelFunc
}

type Option func(*Session)

// WithDialBackoff overrides the fixed interval between dial attempts.
func WithDialBackoff(interval time.Duration) Option {
	return func(that *Session) {
		that.dialBackoff = interval
	}
}

// WithUpdateHandler registers the presentation callback. It is invoked
// outside the session lock, so it may call back into the session.
func WithUpdateHandler(handler func(Update)) Option {
	return func(that *Session) {
		that.onUpdate = handler
	}
}

func New(logger *slog.Logger, transport Transport, opts ...Option) *Session {
	session := &Session{
		logger:      logger.With("component", "session"),
		transport:   transport,
		dialBackoff: defaultDialBackoff,
		phase:       PhaseIdle,
		game:        entity.NewGame(""),
	}

	for _, opt := range opts {
		opt(session)
	}

	return session
}

// Host - registers with the rendezvous service and returns the session ID to
// share out-of-band with the peer. The inbound connection is accepted in the
// background; the update handler observes the transition to connected.
func (that *Session) Host(ctx context.Context) (string, error) {
	runCtx, err := that.begin(ctx, RoleHost)
	if err != nil {
		return "", err
	}

	sessionID, err := that.transport.Register(ctx)
	if err != nil {
		that.terminate(fmt.Errorf("failed to register session: %w", err))
		return "", fmt.Errorf("failed to register session: %w", err)
	}

	that.mu.Lock()
	that.sessionID = sessionID
	that.phase = PhaseRegistered
	that.mu.Unlock()

	that.setPhase(PhaseAwaitingPeer)

	go that.awaitPeer(runCtx)

	return sessionID, nil
}

// Join - registers, then dials the peer-supplied session ID, retrying after a
// fixed backoff while the peer is not reachable yet. Blocks until the data
// channel is established or the context is canceled.
func (that *Session) Join(ctx context.Context, peerSessionID string) error {
	runCtx, err := that.begin(ctx, RoleClient)
	if err != nil {
		return err
	}

	sessionID, err := that.transport.Register(ctx)
	if err != nil {
		that.terminate(fmt.Errorf("failed to register session: %w", err))
		return fmt.Errorf("failed to register session: %w", err)
	}

	that.mu.Lock()
	that.sessionID = sessionID
	that.phase = PhaseRegistered
	that.mu.Unlock()

	that.setPhase(PhaseDialing)

	conn, err := that.dialWithRetry(runCtx, peerSessionID)
	if err != nil {
		that.terminate(fmt.Errorf("failed to dial peer: %w", err))
		return fmt.Errorf("failed to dial peer: %w", err)
	}

	that.establish(conn, entity.PlayerO)

	go that.readLoop(runCtx, conn)

	return nil
}

// MakeTurn - applies a local move and, once accepted, sends it to the peer.
// Rejected moves mutate nothing and send nothing.
func (that *Session) MakeTurn(ctx context.Context, board, cell int) error {
	that.mu.Lock()

	if that.phase != PhaseConnected {
		that.mu.Unlock()
		return ErrNotConnected
	}

	if that.game.Turn != that.mark {
		that.mu.Unlock()
		return apperror.ErrNotYourTurn
	}

	if err := ultimate.MakeTurn(that.game, that.mark, board, cell); err != nil {
		that.mu.Unlock()
		return fmt.Errorf("failed to make turn: %w", err)
	}

	conn := that.conn
	mark := that.mark
	that.mu.Unlock()

	that.notify(nil)

	payload, err := protocol.EncodeMove(protocol.Move{BoardIdx: board, CellIdx: cell, Mark: mark})
	if err != nil {
		return fmt.Errorf("failed to encode move: %w", err)
	}

	if err = conn.Send(ctx, payload); err != nil {
		that.terminate(fmt.Errorf("failed to send move: %w", err))
		return fmt.Errorf("failed to send move: %w", err)
	}

	return nil
}

// Reset - reinitializes the local game copy and propagates the reset to the
// peer. After a reset the host (X) always moves first.
func (that *Session) Reset(ctx context.Context) error {
	that.mu.Lock()

	if that.phase != PhaseConnected {
		that.mu.Unlock()
		return ErrNotConnected
	}

	that.game.Reset()
	conn := that.conn
	that.mu.Unlock()

	that.notify(nil)

	payload, err := protocol.EncodeReset()
	if err != nil {
		return fmt.Errorf("failed to encode reset: %w", err)
	}

	if err = conn.Send(ctx, payload); err != nil {
		that.terminate(fmt.Errorf("failed to send reset: %w", err))
		return fmt.Errorf("failed to send reset: %w", err)
	}

	return nil
}

// Close - terminal local teardown: cancels any pending accept or dial retry
// and releases the transport.
func (that *Session) Close() error {
	that.mu.Lock()

	if that.phase == PhaseClosed {
		that.mu.Unlock()
		return nil
	}

	that.phase = PhaseClosed

	if that.cancel != nil {
		that.cancel()
	}

	conn := that.conn
	that.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			that.logger.Error("failed to close data channel", "error", err)
		}
	}

	if err := that.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}

	return nil
}

// Game returns a copy of the session's game state.
func (that *Session) Game() entity.Game {
	that.mu.Lock()
	defer that.mu.Unlock()

	return *that.game
}

func (that *Session) Phase() Phase {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.phase
}

func (that *Session) Role() Role {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.role
}

// Mark returns the local mark: X for the host, O for the client.
func (that *Session) Mark() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.mark
}

func (that *Session) SessionID() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.sessionID
}

// begin moves an idle session to connecting. Host/Join are single-shot: a new
// attempt needs a new Session, so there is never more than one transport per
// participant.
func (that *Session) begin(ctx context.Context, role Role) (context.Context, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	switch that.phase {
	case PhaseClosed:
		return nil, ErrSessionClosed
	case PhaseIdle:
	default:
		return nil, ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	that.cancel = cancel
	that.role = role
	that.phase = PhaseConnecting

	return runCtx, nil
}

func (that *Session) setPhase(phase Phase) {
	that.mu.Lock()
	that.phase = phase
	that.mu.Unlock()
}

// awaitPeer waits for the single inbound connection on the host side.
func (that *Session) awaitPeer(ctx context.Context) {
	conn, err := that.transport.Accept(ctx)
	if err != nil {
		that.terminate(fmt.Errorf("failed to accept peer connection: %w", err))
		return
	}

	that.establish(conn, entity.PlayerX)
	that.readLoop(ctx, conn)
}

// dialWithRetry retries recoverable dial failures after a fixed backoff,
// without bound on attempt count: the host may simply not have finished
// registering yet. Cancellation comes from the context, which Close cancels.
func (that *Session) dialWithRetry(ctx context.Context, peerSessionID string) (Conn, error) {
	log := that.logger.With("method", "dialWithRetry")

	var conn Conn

	operation := func() error {
		dialed, err := that.transport.Dial(ctx, peerSessionID)
		if errors.Is(err, ErrPeerNotReachable) {
			log.Info("peer not reachable yet, retrying", "sessionID", peerSessionID)
			return err
		}

		if err != nil {
			return backoff.Permanent(err)
		}

		conn = dialed

		return nil
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(that.dialBackoff), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	return conn, nil
}

// establish wires the accepted or dialed connection and starts a fresh game.
// Role and mark assignment is fixed here and never renegotiated.
func (that *Session) establish(conn Conn, mark string) {
	that.mu.Lock()
	that.conn = conn
	that.mark = mark
	that.phase = PhaseConnected
	that.game.Reset()
	that.mu.Unlock()

	that.logger.Info("peer connected", "role", that.Role(), "mark", mark)
	that.notify(nil)
}

// readLoop processes inbound messages until the channel fails or the session
// closes. A post-connection channel fault is terminal.
func (that *Session) readLoop(ctx context.Context, conn Conn) {
	log := that.logger.With("method", "readLoop")

	for {
		payload, err := conn.Receive(ctx)
		if err != nil {
			that.terminate(fmt.Errorf("data channel failed: %w", err))
			return
		}

		msg, err := protocol.Decode(payload)
		if errors.Is(err, protocol.ErrIgnoreMessage) {
			log.Debug("dropped unrecognized message", "error", err)
			continue
		}

		switch variant := msg.(type) {
		case protocol.Move:
			that.applyRemoteMove(variant)
		case protocol.Reset:
			that.applyRemoteReset()
		}
	}
}

// applyRemoteMove revalidates a peer move against the local game copy. The
// mover's mark is inferred from the local turn field; an asserted mark that
// contradicts it, or that names the local mark, indicates a duplicated or
// reordered delivery and the move is dropped.
func (that *Session) applyRemoteMove(move protocol.Move) {
	log := that.logger.With("method", "applyRemoteMove")

	that.mu.Lock()

	mark := that.game.Turn
	if mark == that.mark || mark == entity.EmptyCell {
		that.mu.Unlock()
		log.Warn("dropped remote move out of turn", "board", move.BoardIdx, "cell", move.CellIdx)
		return
	}

	if move.Mark != "" && move.Mark != mark {
		that.mu.Unlock()
		log.Warn("dropped remote move with mismatched mark", "asserted", move.Mark, "expected", mark)
		return
	}

	if err := ultimate.MakeTurn(that.game, mark, move.BoardIdx, move.CellIdx); err != nil {
		that.mu.Unlock()
		log.Warn("dropped illegal remote move", "board", move.BoardIdx, "cell", move.CellIdx, "error", err)
		return
	}

	that.mu.Unlock()
	that.notify(nil)
}

func (that *Session) applyRemoteReset() {
	that.mu.Lock()
	that.game.Reset()
	that.mu.Unlock()

	that.logger.Info("game reset by peer")
	that.notify(nil)
}

// terminate closes the session with a terminal status. It is a no-op when the
// session is already closed, so a read failing after a local Close stays quiet.
func (that *Session) terminate(reason error) {
	that.mu.Lock()

	if that.phase == PhaseClosed {
		that.mu.Unlock()
		return
	}

	that.phase = PhaseClosed

	if that.cancel != nil {
		that.cancel()
	}

	conn := that.conn
	that.conn = nil
	that.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	that.logger.Error("session terminated", "error", reason)
	that.notify(reason)
}

// notify snapshots the state under the lock and invokes the handler outside it.
func (that *Session) notify(reason error) {
	if that.onUpdate == nil {
		return
	}

	that.mu.Lock()
	update := Update{
		Phase: that.phase,
		Game:  *that.game,
		Err:   reason,
	}
	that.mu.Unlock()

	that.onUpdate(update)
}
