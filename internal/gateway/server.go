// Package gateway implements the Search Gateway: a stateless HTTP
// endpoint that resolves a space-separated list of search terms
// through discovery, fans the resolved terms out to the owning
// chatroom instances, and assembles the combined result.
package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"searchbuddy/internal/config"
	"searchbuddy/internal/gatewaymetrics"
)

// Server is the Search Gateway process.
type Server struct {
	cfg     *config.GatewayConfig
	logger  zerolog.Logger
	metrics *gatewaymetrics.Registry

	discovery *discoveryClient
	sem       chan struct{}
}

func New(cfg *config.GatewayConfig, logger zerolog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		metrics:   gatewaymetrics.NewRegistry(),
		discovery: newDiscoveryClient(cfg.DiscoveryAddress, cfg.RequestTimeout),
		sem:       make(chan struct{}, cfg.FanoutWorkers),
	}
}

// Router builds the HTTP handler tree: GET /chatrooms, /healthz,
// /metrics. CORS is permissive on /chatrooms since it is the one
// surface a browser-hosted client talks to directly.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout + time.Second))

	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{s.cfg.CORSOrigins},
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"*"},
		}))
		r.Get("/chatrooms", s.handleSearch)
	})

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", s.metrics.Handler())

	return r
}
