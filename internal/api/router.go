package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/avolkov/docgraph/internal/api/middleware"
	"github.com/avolkov/docgraph/internal/gql"
	"github.com/avolkov/docgraph/internal/health"
)

// RouterConfig holds the dependencies the router wires into the
// middleware chain and route handlers.
type RouterConfig struct {
	GraphQLHandler    *gql.Handler
	SubscriptionBus   *gql.SubscriptionBus
	PlaygroundHandler http.Handler
	Health            *health.Supervisor
	MetricsHandler    http.Handler
	Logger            *slog.Logger
	CORSConfig        middleware.CORSConfig
	APIKeys           map[string]*middleware.User
	RateLimitPerMin   int
	RateLimitBurst    int
	EnableCORS        bool
	EnableRateLimit   bool
	EnableCompression bool
	IsProduction      bool
}

// NewRouter builds the full HTTP surface: request-id, logging, metrics,
// CORS, compression applied globally; GraphQL POST, websocket
// subscriptions, health/readiness, and Prometheus scrape endpoints
// mounted on top.
//
// The middleware stack is applied in order:
//  1. RequestID (always)
//  2. Logging (always)
//  3. Metrics (always)
//  4. Security headers (always)
//  5. CORS
//  6. Compression
//  7. Route-specific: best-effort auth extraction then rate limiting on /graphql
func NewRouter(cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(cfg.Logger))
	router.Use(middleware.MetricsMiddleware)
	router.Use(middleware.SecurityHeadersMiddleware)

	if cfg.EnableCORS {
		router.Use(middleware.CORSMiddleware(cfg.CORSConfig))
	}
	if cfg.EnableCompression {
		router.Use(middleware.CompressionMiddleware)
	}

	router.HandleFunc("/health", healthCheckHandler()).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", readinessHandler(cfg.Health)).Methods(http.MethodGet)

	if cfg.MetricsHandler != nil {
		router.Handle("/metrics", cfg.MetricsHandler).Methods(http.MethodGet)
	}

	var graphqlHandler http.Handler = cfg.GraphQLHandler
	if cfg.EnableRateLimit {
		graphqlHandler = middleware.RateLimitMiddleware(cfg.RateLimitPerMin, cfg.RateLimitBurst)(graphqlHandler)
	}
	graphqlHandler = middleware.AuthMiddleware(middleware.AuthConfig{APIKeys: cfg.APIKeys})(graphqlHandler)
	router.Handle("/graphql", graphqlHandler).Methods(http.MethodPost, http.MethodGet)

	router.HandleFunc("/graphql/subscriptions", subscriptionHandler(cfg.SubscriptionBus, cfg.Logger))

	if !cfg.IsProduction && cfg.PlaygroundHandler != nil {
		router.Handle("/playground", cfg.PlaygroundHandler).Methods(http.MethodGet)
	}

	return router
}

func healthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func readinessHandler(supervisor *health.Supervisor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := supervisor.Snapshot(r.Context())
		status := http.StatusOK
		if !snap.IsReady() {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(snap)
	}
}

var subscriptionUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func subscriptionHandler(bus *gql.SubscriptionBus, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if bus == nil {
			http.Error(w, "subscriptions are not enabled", http.StatusNotImplemented)
			return
		}
		subscriberID := middleware.GetRequestID(r.Context())
		author := r.URL.Query().Get("author")
		if err := bus.ServeSubscription(w, r, &subscriptionUpgrader, subscriberID, author); err != nil {
			logger.Warn("subscription connection ended with error", "error", err, "subscriber_id", subscriberID)
		}
	}
}
