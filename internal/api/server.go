package api

import (
	"log/slog"
	"net/http"

	"factoryplan/internal/auth"
	"factoryplan/internal/config"
	"factoryplan/internal/metrics"
	"factoryplan/internal/opt"
	"factoryplan/internal/store"
	"factoryplan/internal/webhooks"
)

type Server struct {
	Cfg     config.Config
	Store   store.Store
	Solver  opt.Solver
	Pub     *webhooks.Publisher
	Broker  EventBroker
	Limiter *TenantLimiter
	Auth    *auth.Verifier
	Log     *slog.Logger
}

// NewServer wires a Server. A nil broker falls back to the in-memory Broker and a nil
// logger to slog.Default().
func NewServer(cfg config.Config, st store.Store, broker EventBroker, log *slog.Logger) *Server {
	if broker == nil {
		broker = NewBroker()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		Cfg:     cfg,
		Store:   st,
		Solver:  opt.BranchAndBound{},
		Pub:     webhooks.NewPublisher(st, log),
		Broker:  broker,
		Limiter: NewTenantLimiter(cfg.RateRPS, cfg.RateBurst),
		Auth:    auth.NewVerifier(cfg.AuthHMACSecret),
		Log:     log,
	}
}

// Routes returns the service handler with logging and metrics middleware applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Optimization
	mux.HandleFunc("POST /v1/optimize", s.OptimizeHandler)
	mux.HandleFunc("GET /v1/optimizer/config", s.OptimizerConfigHandler)
	mux.HandleFunc("GET /v1/admin/optimizer/config", s.AdminOptimizerConfigHandler)
	mux.HandleFunc("PUT /v1/admin/optimizer/config", s.AdminOptimizerConfigHandler)
	mux.HandleFunc("GET /v1/admin/plan-metrics", s.PlanMetricsHandler)

	// Plans
	mux.HandleFunc("GET /v1/plans", s.PlansHandler)
	mux.HandleFunc("GET /v1/plans/events", s.PlanEventsHandler)
	mux.HandleFunc("GET /v1/plans/{id}", s.PlanByIDHandler)

	// Subscriptions and deliveries
	mux.HandleFunc("POST /v1/subscriptions", s.SubscriptionsHandler)
	mux.HandleFunc("GET /v1/subscriptions", s.SubscriptionsHandler)
	mux.HandleFunc("DELETE /v1/subscriptions/{id}", s.SubscriptionByIDHandler)
	mux.HandleFunc("GET /v1/admin/webhook-deliveries", s.WebhookDeliveriesHandler)

	// Ops
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /debug/info", s.DebugJSON)

	return s.logMiddleware(mux)
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Cfg.WebhookMaxAttempts, s.Log)
}
