package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

const (
	actionRegister   = "register"
	actionRegistered = "registered"
	actionResolve    = "resolve"
	actionResolved   = "resolved"
	actionNotFound   = "not_found"
)

const (
	reconnectInterval = 2 * time.Second
	replyTimeout      = 10 * time.Second
)

var (
	ErrSessionNotFound = errors.New("session id is not registered")
	ErrClientClosed    = errors.New("rendezvous client is closed")
	ErrUnexpectedReply = errors.New("unexpected rendezvous reply")

	errConnectionLost = errors.New("rendezvous connection lost")
)

// message is the signaling envelope exchanged with the rendezvous service.
type message struct {
	Action    string `json:"action"`
	Addr      string `json:"addr,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Client keeps one websocket connection to the external rendezvous service.
// The service issues an opaque session ID for a registered address and
// resolves a peer-supplied ID back to an address. A background read loop
// watches the connection; when it drops while the client is not closed, the
// client re-dials with a fixed backoff and re-registers the stored address,
// so a published session ID stays resolvable even while the owner sits idle
// waiting for a peer. Losing this connection never touches an established
// peer data channel.
type Client struct {
	logger        *slog.Logger
	url           string
	retryInterval time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	replies   chan message
	addr      string
	sessionID string
	closed    bool
}

// Connect - dials the rendezvous service.
func Connect(ctx context.Context, logger *slog.Logger, url string) (*Client, error) {
	client := &Client{
		logger:        logger.With("component", "rendezvous"),
		url:           url,
		retryInterval: reconnectInterval,
	}

	client.mu.Lock()
	defer client.mu.Unlock()

	if err := client.redial(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to rendezvous service: %w", err)
	}

	return client, nil
}

// Register - publishes the local address and returns the session ID issued by
// the service. The address is remembered so a reconnect can re-register it
// under the same ID.
func (that *Client) Register(ctx context.Context, addr string) (string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.addr = addr

	reply, err := that.roundTrip(ctx, message{Action: actionRegister, Addr: addr, SessionID: that.sessionID})
	if err != nil {
		return "", fmt.Errorf("failed to register: %w", err)
	}

	if reply.Action != actionRegistered || reply.SessionID == "" {
		return "", fmt.Errorf("%w: action %q", ErrUnexpectedReply, reply.Action)
	}

	that.sessionID = reply.SessionID

	return reply.SessionID, nil
}

// Resolve - looks up the address registered under the given session ID.
func (that *Client) Resolve(ctx context.Context, sessionID string) (string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	reply, err := that.roundTrip(ctx, message{Action: actionResolve, SessionID: sessionID})
	if err != nil {
		return "", fmt.Errorf("failed to resolve: %w", err)
	}

	switch reply.Action {
	case actionResolved:
		return reply.Addr, nil
	case actionNotFound:
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	default:
		return "", fmt.Errorf("%w: action %q", ErrUnexpectedReply, reply.Action)
	}
}

func (that *Client) Close() error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.closed = true

	if that.conn == nil {
		return nil
	}

	conn := that.conn
	that.conn = nil
	that.replies = nil

	if err := conn.Close(); err != nil {
		return fmt.Errorf("failed to close rendezvous connection: %w", err)
	}

	return nil
}

// roundTrip performs one request/reply exchange, reconnecting once if the
// signaling connection has dropped in the meantime. Callers hold the lock.
func (that *Client) roundTrip(ctx context.Context, req message) (message, error) {
	log := that.logger.With("method", "roundTrip")

	for attempt := 0; attempt < 2; attempt++ {
		if that.closed {
			return message{}, ErrClientClosed
		}

		if that.conn == nil {
			if err := that.reconnect(ctx); err != nil {
				return message{}, err
			}
		}

		reply, err := that.request(ctx, req)
		if errors.Is(err, errConnectionLost) {
			log.Warn("rendezvous connection lost mid-request", "error", err)
			that.dropConn()
			continue
		}

		if err != nil {
			return message{}, err
		}

		return reply, nil
	}

	return message{}, errConnectionLost
}

// request writes one request on the live connection and waits for the read
// loop to route the reply back. Callers hold the lock.
func (that *Client) request(ctx context.Context, req message) (message, error) {
	replies := that.replies

	// a reply abandoned by a timed-out request must not answer this one
	select {
	case <-replies:
	default:
	}

	if err := that.conn.WriteJSON(req); err != nil {
		return message{}, fmt.Errorf("%w: %w", errConnectionLost, err)
	}

	timer := time.NewTimer(replyTimeout)
	defer timer.Stop()

	select {
	case reply, ok := <-replies:
		if !ok {
			return message{}, errConnectionLost
		}

		return reply, nil
	case <-timer.C:
		return message{}, fmt.Errorf("%w: reply timed out", errConnectionLost)
	case <-ctx.Done():
		return message{}, fmt.Errorf("request canceled: %w", ctx.Err())
	}
}

// reconnect re-dials the service with a fixed backoff and, when this client
// had registered an address before, re-registers it under the same session ID.
// Callers hold the lock.
func (that *Client) reconnect(ctx context.Context) error {
	log := that.logger.With("method", "reconnect")

	operation := func() error {
		if err := that.redial(ctx); err != nil {
			log.Info("rendezvous service unavailable, retrying", "error", err)
			return err
		}

		return nil
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(that.retryInterval), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("failed to reconnect to rendezvous service: %w", err)
	}

	if err := that.reregister(ctx); err != nil {
		that.dropConn()
		return err
	}

	return nil
}

func (that *Client) reregister(ctx context.Context) error {
	if that.addr == "" {
		return nil
	}

	reply, err := that.request(ctx, message{Action: actionRegister, Addr: that.addr, SessionID: that.sessionID})
	if err != nil {
		return fmt.Errorf("failed to re-register after reconnect: %w", err)
	}

	if reply.Action != actionRegistered || reply.SessionID == "" {
		return fmt.Errorf("%w: action %q", ErrUnexpectedReply, reply.Action)
	}

	that.sessionID = reply.SessionID
	that.logger.Info("re-registered with rendezvous service", "sessionID", that.sessionID)

	return nil
}

// redial establishes a fresh signaling connection and starts its read loop.
// Callers hold the lock.
func (that *Client) redial(ctx context.Context) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, that.url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		return fmt.Errorf("failed to dial %s: %w", that.url, err)
	}

	replies := make(chan message, 1)
	that.conn = conn
	that.replies = replies

	go that.readPump(conn, replies)

	return nil
}

// readPump is the single reader of the signaling connection. Besides routing
// replies to the waiting request, its read error is the disconnect signal
// that triggers the automatic reconnect.
func (that *Client) readPump(conn *websocket.Conn, replies chan message) {
	for {
		var reply message
		if err := conn.ReadJSON(&reply); err != nil {
			close(replies)
			that.handleDrop(conn, err)

			return
		}

		select {
		case replies <- reply:
		default:
			that.logger.Warn("dropped unsolicited rendezvous message", "action", reply.Action)
		}
	}
}

// handleDrop reacts to a failed read: unless the client is closed or the
// connection was already replaced by a foreground reconnect, it restores the
// registration in the background.
func (that *Client) handleDrop(conn *websocket.Conn, reason error) {
	that.mu.Lock()

	if that.closed || that.conn != conn {
		that.mu.Unlock()
		return
	}

	that.conn = nil
	that.replies = nil
	_ = conn.Close()
	that.mu.Unlock()

	that.logger.Warn("rendezvous connection lost", "error", reason)
	that.keepRegistered()
}

// keepRegistered re-dials and re-registers after a drop so the published
// session ID stays resolvable while the owner is idle, e.g. a host waiting
// for its peer. It stops once the client is closed or a foreground operation
// has reconnected first.
func (that *Client) keepRegistered() {
	log := that.logger.With("method", "keepRegistered")

	operation := func() error {
		that.mu.Lock()
		defer that.mu.Unlock()

		if that.closed {
			return backoff.Permanent(ErrClientClosed)
		}

		if that.conn != nil {
			return nil
		}

		if err := that.redial(context.Background()); err != nil {
			log.Info("rendezvous service unavailable, retrying", "error", err)
			return err
		}

		if err := that.reregister(context.Background()); err != nil {
			that.dropConn()
			return err
		}

		return nil
	}

	if err := backoff.Retry(operation, backoff.NewConstantBackOff(that.retryInterval)); err != nil {
		log.Error("stopped reconnecting", "error", err)
	}
}

// dropConn discards the current connection. Callers hold the lock; the read
// loop notices the close and exits without starting another reconnect.
func (that *Client) dropConn() {
	if that.conn != nil {
		_ = that.conn.Close()
		that.conn = nil
		that.replies = nil
	}
}
