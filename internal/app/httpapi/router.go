package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/potipress/insideout/internal/app/metrics"
	"github.com/potipress/insideout/internal/middleware"
	"github.com/potipress/insideout/pkg/logger"
)

// RouterConfig carries the HTTP surface options.
type RouterConfig struct {
	// AuthSecret enables bearer token authentication on the /v1 surface
	// when non-empty. The legacy endpoints stay open either way.
	AuthSecret string

	// CORSOrigins lists allowed origins; "*" allows all. Empty disables
	// the CORS headers entirely.
	CORSOrigins []string

	// RateLimitPerSecond throttles per client when > 0.
	RateLimitPerSecond int
	RateLimitBurst     int
}

// NewRouter assembles the full route table with middleware.
func NewRouter(h *Handler, collector *metrics.Collector, log *logger.Logger, cfg RouterConfig) http.Handler {
	if log == nil {
		log = logger.NewDefault("router")
	}

	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(log.WithComponent("http")))
	if collector != nil {
		r.Use(middleware.MetricsMiddleware(collector))
		r.Handle("/metrics", collector.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)

	// Legacy unversioned surface, kept for existing clients.
	r.HandleFunc("/process", h.handleProcess).Methods(http.MethodPost)
	r.HandleFunc("/api_count", h.handleAPICount).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	if cfg.AuthSecret != "" {
		auth := middleware.NewAuthMiddleware(cfg.AuthSecret, log.WithComponent("auth"), nil)
		v1.Use(auth.Handler)
	}
	v1.HandleFunc("/process", h.handleProcess).Methods(http.MethodPost)
	v1.HandleFunc("/api_count", h.handleAPICount).Methods(http.MethodGet)
	v1.HandleFunc("/emotions", h.handleCreateOverride).Methods(http.MethodPost)
	v1.HandleFunc("/emotions/{emotion}", h.handleGetOverride).Methods(http.MethodGet)
	v1.HandleFunc("/emotions/{emotion}", h.handleUpdateOverride).Methods(http.MethodPatch)
	v1.HandleFunc("/emotions/{emotion}", h.handleDeleteOverride).Methods(http.MethodDelete)

	var handler http.Handler = r
	if cfg.RateLimitPerSecond > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = cfg.RateLimitPerSecond
		}
		limiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, burst, log.WithComponent("ratelimit"))
		handler = limiter.Handler(handler)
	}
	if len(cfg.CORSOrigins) > 0 {
		handler = middleware.NewCORSMiddleware(cfg.CORSOrigins).Handler(handler)
	}
	return handler
}
