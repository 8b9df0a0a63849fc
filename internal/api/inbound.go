package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/bookwise/webhook-service/internal/domain"
	"github.com/bookwise/webhook-service/internal/engine"
	"github.com/bookwise/webhook-service/internal/metrics"
	"github.com/bookwise/webhook-service/internal/signature"
)

const maxInboundBody = 64 * 1024

// InboundStore is the slice of the store the inbound receiver needs.
type InboundStore interface {
	GetSubscriptionByID(ctx context.Context, id string) (*domain.Subscription, error)
	CreateNotification(ctx context.Context, n domain.Notification) (*domain.Notification, error)
}

// InboundHandler receives authenticated callbacks from external systems and
// turns them into user notifications. Callers reference their subscription in
// the payload and sign the raw body with the same secret we use for outbound
// deliveries to it. Rejections are authentication failures, never delivery
// attempts, and are never retried by us.
type InboundHandler struct {
	store     InboundStore
	limiter   *engine.RateLimiter
	rateLimit int
	logger    *slog.Logger
}

func NewInboundHandler(s InboundStore, limiter *engine.RateLimiter, rateLimit int, logger *slog.Logger) *InboundHandler {
	return &InboundHandler{store: s, limiter: limiter, rateLimit: rateLimit, logger: logger}
}

type inboundRequest struct {
	SubscriptionID string `json:"subscription_id"`
	UserID         string `json:"user_id"`
	Message        string `json:"message"`
	Severity       string `json:"severity"`
}

func (h *InboundHandler) Receive(w http.ResponseWriter, r *http.Request) {
	// A missing signature is rejected before the body is interpreted at all.
	provided := r.Header.Get(signature.Header)
	if provided == "" {
		metrics.InboundCalls.WithLabelValues("missing_signature").Inc()
		respondError(w, http.StatusUnauthorized, "missing signature")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxInboundBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var req inboundRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SubscriptionID == "" {
		respondError(w, http.StatusBadRequest, "subscription_id is required")
		return
	}

	if !h.limiter.Allow(r.Context(), req.SubscriptionID, h.rateLimit) {
		metrics.InboundCalls.WithLabelValues("rate_limited").Inc()
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	sub, err := h.store.GetSubscriptionByID(r.Context(), req.SubscriptionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to resolve subscription")
		return
	}
	if sub == nil {
		// Same response as a bad signature so callers cannot probe ids.
		metrics.InboundCalls.WithLabelValues("unknown_subscription").Inc()
		respondError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	// The signature covers the exact bytes received.
	if !signature.Verify(body, sub.SecretHash, provided) {
		metrics.InboundCalls.WithLabelValues("bad_signature").Inc()
		h.logger.Warn("inbound call with invalid signature",
			"subscription_id", req.SubscriptionID,
			"tenant_id", sub.TenantID,
		)
		respondError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.Severity == "" {
		req.Severity = domain.SeverityInfo
	}
	if !domain.ValidSeverity(req.Severity) {
		respondError(w, http.StatusBadRequest, "unknown severity")
		return
	}

	notification, err := h.store.CreateNotification(r.Context(), domain.Notification{
		TenantID: sub.TenantID,
		UserID:   req.UserID,
		Message:  req.Message,
		Severity: req.Severity,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create notification")
		return
	}

	metrics.InboundCalls.WithLabelValues("accepted").Inc()
	h.logger.Info("inbound notification accepted",
		"subscription_id", req.SubscriptionID,
		"tenant_id", sub.TenantID,
		"severity", req.Severity,
	)

	respondJSON(w, http.StatusAccepted, notification)
}
