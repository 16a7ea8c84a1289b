package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/config"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/repository"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/repository/storage"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/session"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/transport/peer"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/transport/rendezvous"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/usecase"
	"github.com/rocketscienceinc/ultimate-tictactoe/transport/rest"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// NewPeerSession - builds a peer-to-peer session from the peer configuration:
// it dials the rendezvous service and wires the direct websocket transport
// underneath a fresh session. The caller owns the session's lifecycle and is
// expected to Host or Join it; closing the session releases the transport and
// the rendezvous connection.
func NewPeerSession(ctx context.Context, logger *slog.Logger, conf *config.Config, opts ...session.Option) (*session.Session, error) {
	rdv, err := rendezvous.Connect(ctx, logger, conf.Peer.RendezvousURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rendezvous service: %w", err)
	}

	transport := peer.NewTransport(logger, rdv, conf.Peer.ListenAddr)

	opts = append([]session.Option{session.WithDialBackoff(conf.Peer.DialBackoff)}, opts...)

	return session.New(logger, transport, opts...), nil
}

// RunApp - runs the authoritative REST game server. Peer-to-peer sessions are
// embedded by the presentation layer through NewPeerSession and do not need
// this process.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.New(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	gameRepo := repository.NewGameRepository(redisStorage.Connection)
	gameUseCase := usecase.NewGameManager(logger, gameRepo)

	restServer := rest.New(logger, gameUseCase)

	log.Info("Starting HTTP server", "port", conf.HTTPPort)
	if err = restServer.Start(ctx, conf.HTTPPort); err != nil {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	return nil
}
