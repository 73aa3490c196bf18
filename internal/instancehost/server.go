// Package instancehost implements the Chatroom Instance process: it
// registers with discovery, heartbeats its lease, and serves the
// WebSocket and /chatrooms endpoints that materialize rooms on demand.
package instancehost

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"searchbuddy/internal/config"
	"searchbuddy/internal/persistence"
	"searchbuddy/internal/ratelimit"
	"searchbuddy/internal/resourceguard"
	"searchbuddy/internal/room"
	"searchbuddy/internal/roommetrics"
)

// Server is the Chatroom Instance process.
type Server struct {
	cfg    *config.InstanceConfig
	logger zerolog.Logger

	store    persistence.Store
	registry *room.Registry
	metrics  *roommetrics.Registry
	guard    *resourceguard.Guard
	limiter  *ratelimit.IPLimiter

	discovery  *discoveryClient
	instanceID int32
}

// New wires a Server from configuration. Boot must be called before
// Router to register with discovery and obtain an instance id.
func New(cfg *config.InstanceConfig, store persistence.Store, logger zerolog.Logger) *Server {
	metrics := roommetrics.NewRegistry()

	return &Server{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		registry:  room.NewRegistry(store, metrics, logger),
		metrics:   metrics,
		guard:     resourceguard.New(cfg.CPURejectThreshold, logger),
		limiter:   ratelimit.New(cfg.ConnectRatePerSec, cfg.ConnectBurst, logger),
		discovery: newDiscoveryClient(cfg.DiscoveryAddress),
	}
}

// Boot registers this instance with discovery and stores the minted
// instance id. Must succeed before the instance accepts traffic — a
// failure here is a boot error and should fail the process fast.
func (s *Server) Boot(ctx context.Context) error {
	instanceID, err := s.discovery.register(ctx, s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("register with discovery: %w", err)
	}
	s.instanceID = instanceID
	s.logger.Info().Int32("instance_id", instanceID).Str("listen_address", s.cfg.ListenAddress).Msg("registered with discovery")
	return nil
}

// Heartbeat runs the ping loop until ctx is canceled or discovery
// reports the lease is no longer active, in which case it returns
// ErrLeaseExpired — the caller is expected to exit the process
// nonzero so a supervisor restarts it with a fresh instance id.
func (s *Server) Heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.HeartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			result, err := s.discovery.ping(ctx, s.cfg.ListenAddress, s.instanceID)
			if err != nil {
				s.logger.Error().Err(err).Msg("heartbeat ping failed, will retry next tick")
				continue
			}
			if result != "" && result != pingResultOk {
				s.logger.Error().Msg("discovery reports this instance's lease is no longer active")
				return ErrLeaseExpired
			}
		}
	}
}

const pingResultOk = "Ok"

// ErrLeaseExpired is returned by Heartbeat when discovery answers
// NoLongerActive: this process must terminate so a supervisor starts
// a replacement with a fresh instance id.
var ErrLeaseExpired = fmt.Errorf("instancehost: lease no longer active")

// Router builds the HTTP handler tree: GET /ws, POST /chatrooms,
// /healthz, /metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/ws", s.handleWebSocket)
	r.Post("/chatrooms", s.handleChatrooms)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", s.metrics.Handler())

	return r
}

func newUserID() int32 {
	return int32(rand.Uint32())
}
