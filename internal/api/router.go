package api

import (
	"log/slog"
	"net/http"

	"github.com/bookwise/webhook-service/internal/auth"
	"github.com/bookwise/webhook-service/internal/config"
	"github.com/bookwise/webhook-service/internal/engine"
	"github.com/bookwise/webhook-service/internal/metrics"
	"github.com/bookwise/webhook-service/internal/store"
	ws "github.com/bookwise/webhook-service/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(
	cfg *config.Config,
	pgStore *store.PostgresStore,
	publisher *engine.Publisher,
	builder *engine.PayloadBuilder,
	dispatcher Dispatcher,
	cb *engine.CircuitBreaker,
	limiter *engine.RateLimiter,
	hub *ws.Hub,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	authz := auth.TenantAdminAuthorizer{}

	// Handlers
	subHandler := NewSubscriptionHandler(pgStore, authz, builder, dispatcher, cb)
	eventHandler := NewEventHandler(publisher)
	deliveryHandler := NewDeliveryHandler(pgStore, authz)
	inboundHandler := NewInboundHandler(pgStore, limiter, cfg.InboundRateRPS, logger)

	// WebSocket endpoint for the live delivery feed
	r.Get("/ws", hub.HandleWebSocket)

	// Prometheus scrape endpoint
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())

		// Internal event ingest from the booking/resource services
		r.Post("/events", eventHandler.Publish)

		// Inbound callbacks from external systems, signature authenticated
		r.Post("/inbound", inboundHandler.Receive)

		// Management surface, gateway identity headers required
		r.Group(func(r chi.Router) {
			r.Use(requireCaller)

			r.Route("/subscriptions", func(r chi.Router) {
				r.Post("/", subHandler.Create)
				r.Get("/", subHandler.List)
				r.Get("/{id}", subHandler.Get)
				r.Patch("/{id}", subHandler.Update)
				r.Delete("/{id}", subHandler.Delete)
				r.Post("/{id}/test", subHandler.Test)
				r.Get("/{id}/deliveries", subHandler.Deliveries)
			})

			r.Route("/deliveries", func(r chi.Router) {
				r.Get("/", deliveryHandler.List)
				r.Get("/{id}", deliveryHandler.Get)
			})
		})
	})

	return r
}
