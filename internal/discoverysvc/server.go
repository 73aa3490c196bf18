// Package discoverysvc implements the Discovery Service: the lease
// registry chatroom instances heartbeat against, and the sticky
// term -> instance directory the search gateway and instances
// consult to find who hosts a room.
package discoverysvc

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"searchbuddy/internal/config"
	"searchbuddy/internal/discoverymetrics"
	"searchbuddy/internal/persistence"
)

// Server is the Discovery Service process.
type Server struct {
	cfg     *config.DiscoveryConfig
	logger  zerolog.Logger
	store   persistence.Store
	metrics *discoverymetrics.Registry
}

func New(cfg *config.DiscoveryConfig, store persistence.Store, logger zerolog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		metrics: discoverymetrics.NewRegistry(),
	}
}

// Janitor runs every ReapInterval until ctx is canceled and deletes
// instance rows whose last heartbeat is older than LeaseTTL *
// ReapMultiplier. This only bounds table growth: expired instances are
// already excluded from term resolution by the active-instance query.
func (s *Server) Janitor(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ReapInterval)
	defer ticker.Stop()
	reapAfter := time.Duration(float64(s.cfg.LeaseTTL) * s.cfg.ReapMultiplier)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.ReapExpiredInstances(ctx, s.cfg.Region, reapAfter)
			if err != nil {
				s.logger.Error().Err(err).Msg("janitor: reap expired instances failed")
				continue
			}
			if n > 0 {
				s.metrics.InstancesReaped.Add(float64(n))
				s.logger.Info().Int64("count", n).Msg("janitor: reaped expired instances")
			}
		}
	}
}

// Router builds the HTTP handler tree: POST /register, POST /ping,
// POST /chatroom, /healthz, /metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Post("/register", s.handleRegister)
	r.Post("/ping", s.handlePing)
	r.Post("/chatroom", s.handleChatroom)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", s.metrics.Handler())

	return r
}
