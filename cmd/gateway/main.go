// Command gateway runs the Search Gateway: a stateless HTTP endpoint
// that resolves search terms through discovery and fans out to the
// owning chatroom instances.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"searchbuddy/internal/config"
	"searchbuddy/internal/gateway"
	"searchbuddy/internal/logging"
)

func main() {
	cfg, err := config.LoadGatewayConfig()
	if err != nil {
		logging.New("gateway", "info", "json").Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New("gateway", cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server := gateway.New(cfg, logger)

	httpSrv := newHTTPServer(cfg.ListenAddress, server.Router())
	serveErr := make(chan error, 1)
	go func() { serveErr <- httpSrv.ListenAndServe() }()

	logger.Info().Str("listen_address", cfg.ListenAddress).Msg("search gateway serving")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		logger.Fatal().Err(err).Msg("http server exited unexpectedly")
	}

	shutdown(httpSrv, logger)
}
