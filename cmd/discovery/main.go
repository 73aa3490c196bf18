// Command discovery runs the Discovery Service: the lease registry
// chatroom instances heartbeat against, and the sticky term -> instance
// directory the gateway and instances consult.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"searchbuddy/internal/config"
	"searchbuddy/internal/discoverysvc"
	"searchbuddy/internal/logging"
	"searchbuddy/internal/persistence"
)

func main() {
	cfg, err := config.LoadDiscoveryConfig()
	if err != nil {
		logging.New("discovery", "info", "json").Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New("discovery", cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := persistence.NewFromEnv(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open persistence backend")
	}
	defer store.Close()

	server := discoverysvc.New(cfg, store, logger)
	go server.Janitor(ctx)

	httpSrv := newHTTPServer(cfg.ListenAddress, server.Router())
	serveErr := make(chan error, 1)
	go func() { serveErr <- httpSrv.ListenAndServe() }()

	logger.Info().Str("listen_address", cfg.ListenAddress).Str("region", cfg.Region).Msg("discovery service serving")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		logger.Fatal().Err(err).Msg("http server exited unexpectedly")
	}

	shutdown(httpSrv, logger)
}
