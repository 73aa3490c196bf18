// Command instance runs the Chatroom Instance process: it registers
// with discovery, heartbeats its lease, and serves WebSocket chat
// traffic for whichever rooms get touched on it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"searchbuddy/internal/config"
	"searchbuddy/internal/instancehost"
	"searchbuddy/internal/logging"
	"searchbuddy/internal/persistence"
)

func main() {
	cfg, err := config.LoadInstanceConfig()
	if err != nil {
		logging.New("instance", "info", "json").Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New("instance", cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := persistence.NewFromEnv(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open persistence backend")
	}
	defer store.Close()

	server := instancehost.New(cfg, store, logger)

	if err := server.Boot(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to register with discovery")
	}

	heartbeatErr := make(chan error, 1)
	go func() { heartbeatErr <- server.Heartbeat(ctx) }()

	httpSrv := newHTTPServer(cfg.ListenAddress, server.Router())
	serveErr := make(chan error, 1)
	go func() { serveErr <- httpSrv.ListenAndServe() }()

	logger.Info().Str("listen_address", cfg.ListenAddress).Msg("instance host serving")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-heartbeatErr:
		if err != nil {
			logger.Fatal().Err(err).Msg("lease expired, terminating for supervisor restart")
		}
	case err := <-serveErr:
		logger.Fatal().Err(err).Msg("http server exited unexpectedly")
	}

	shutdown(httpSrv, logger)
}
