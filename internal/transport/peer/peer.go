package peer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/session"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/transport/rendezvous"
)

const peerPath = "/peer"

var ErrTransportClosed = errors.New("peer transport is closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Peers dial each other directly; there is no browser origin to verify.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// Transport implements session.Transport over a direct websocket channel
// between the two participants. The rendezvous service only exchanges
// addresses: Register publishes the local listener, Dial resolves the peer's
// session ID to an address and connects to it.
type Transport struct {
	logger     *slog.Logger
	rdv        *rendezvous.Client
	listenAddr string

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	accepted chan session.Conn
	closed   bool
}

// NewTransport - the transport takes ownership of the rendezvous client and
// closes it on teardown. listenAddr is the address the local data-channel
// listener binds to; ":0" picks a free port.
func NewTransport(logger *slog.Logger, rdv *rendezvous.Client, listenAddr string) *Transport {
	return &Transport{
		logger:     logger.With("component", "peer-transport"),
		rdv:        rdv,
		listenAddr: listenAddr,
		accepted:   make(chan session.Conn, 1),
	}
}

// Register - starts the local data-channel listener and publishes its address
// through the rendezvous service, returning the issued session ID.
func (that *Transport) Register(ctx context.Context) (string, error) {
	that.mu.Lock()

	if that.closed {
		that.mu.Unlock()
		return "", ErrTransportClosed
	}

	if that.listener == nil {
		listener, err := net.Listen("tcp", that.listenAddr)
		if err != nil {
			that.mu.Unlock()
			return "", fmt.Errorf("failed to listen on %s: %w", that.listenAddr, err)
		}

		mux := http.NewServeMux()
		mux.HandleFunc(peerPath, that.handleInbound)

		server := &http.Server{
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			IdleTimeout: 30 * time.Second,
		}

		that.listener = listener
		that.server = server

		go func() {
			if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				that.logger.Error("peer listener stopped", "error", err)
			}
		}()
	}

	addr := that.listener.Addr().String()
	that.mu.Unlock()

	sessionID, err := that.rdv.Register(ctx, addr)
	if err != nil {
		return "", fmt.Errorf("failed to register with rendezvous service: %w", err)
	}

	that.logger.Info("registered data channel", "addr", addr, "sessionID", sessionID)

	return sessionID, nil
}

// Accept - yields the single inbound data channel.
func (that *Transport) Accept(ctx context.Context) (session.Conn, error) {
	select {
	case conn := <-that.accepted:
		return conn, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("accept canceled: %w", ctx.Err())
	}
}

// Dial - resolves the peer's session ID and connects to its data channel.
// An unregistered ID and a refused connection are both the recoverable
// "peer not yet reachable" class; the session retries those with backoff.
// A peer that answers but rejects the upgrade is a permanent fault and
// surfaces immediately.
func (that *Transport) Dial(ctx context.Context, sessionID string) (session.Conn, error) {
	addr, err := that.rdv.Resolve(ctx, sessionID)
	if errors.Is(err, rendezvous.ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: %s", session.ErrPeerNotReachable, sessionID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to resolve peer address: %w", err)
	}

	url := "ws://" + addr + peerPath

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		if errors.Is(err, websocket.ErrBadHandshake) {
			return nil, fmt.Errorf("peer %s rejected handshake: %w", addr, err)
		}

		return nil, fmt.Errorf("%w: dial %s: %w", session.ErrPeerNotReachable, addr, err)
	}

	return newConn(ws), nil
}

func (that *Transport) Close() error {
	that.mu.Lock()

	if that.closed {
		that.mu.Unlock()
		return nil
	}

	that.closed = true
	server := that.server
	that.mu.Unlock()

	if server != nil {
		if err := server.Close(); err != nil {
			that.logger.Error("failed to close peer listener", "error", err)
		}
	}

	if err := that.rdv.Close(); err != nil {
		return fmt.Errorf("failed to close rendezvous client: %w", err)
	}

	return nil
}

// handleInbound upgrades the peer's connection attempt. Only one data channel
// exists per session; a second attempt is turned away.
func (that *Transport) handleInbound(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "handleInbound")

	ws, err := upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade inbound connection", "error", err)
		return
	}

	conn := newConn(ws)

	select {
	case that.accepted <- conn:
		log.Info("peer connection accepted", "remote", req.RemoteAddr)
	default:
		log.Warn("rejected extra peer connection", "remote", req.RemoteAddr)
		_ = conn.Close()
	}
}

// Conn adapts a gorilla websocket connection to session.Conn. The websocket
// gives ordered, non-duplicating delivery; Receive unblocks when the
// connection is closed, which is how the owning session cancels it.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

func (that *Conn) Send(ctx context.Context, payload []byte) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		if err := that.ws.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	if err := that.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *Conn) Receive(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := that.ws.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	_, payload, err := that.ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	return payload, nil
}

func (that *Conn) Close() error {
	that.writeMu.Lock()
	_ = that.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	that.writeMu.Unlock()

	if err := that.ws.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}

	return nil
}
