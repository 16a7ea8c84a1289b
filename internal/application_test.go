package application

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/config"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewPeerSession(t *testing.T) {
	ctx := context.Background()

	t.Run("Wires the transport from the peer configuration", func(t *testing.T) {
		// Given: a reachable rendezvous endpoint
		upgrader := websocket.Upgrader{}
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, req *http.Request) {
			conn, err := upgrader.Upgrade(writer, req, nil)
			if err != nil {
				return
			}
			defer conn.Close()

			for {
				if _, _, err = conn.ReadMessage(); err != nil {
					return
				}
			}
		}))
		t.Cleanup(server.Close)

		conf := &config.Config{Peer: config.Peer{
			RendezvousURL: "ws" + strings.TrimPrefix(server.URL, "http"),
			ListenAddr:    "127.0.0.1:0",
			DialBackoff:   25 * time.Millisecond,
		}}

		// When: a peer session is built from it
		sess, err := NewPeerSession(ctx, testLogger(), conf)

		// Then: the session is idle and ready to Host or Join
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.Equal(t, session.PhaseIdle, sess.Phase())

		require.NoError(t, sess.Close())
	})

	t.Run("Surfaces an unreachable rendezvous service", func(t *testing.T) {
		conf := &config.Config{Peer: config.Peer{
			RendezvousURL: "ws://127.0.0.1:1/rendezvous",
			ListenAddr:    "127.0.0.1:0",
		}}

		_, err := NewPeerSession(ctx, testLogger(), conf)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "rendezvous")
	})
}
