package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bookwise/webhook-service/internal/domain"
	"github.com/bookwise/webhook-service/internal/engine"
	"github.com/bookwise/webhook-service/internal/metrics"
	"github.com/bookwise/webhook-service/internal/signature"
	ws "github.com/bookwise/webhook-service/internal/websocket"
)

// maxResponseBody bounds how much of the subscriber's response is logged.
const maxResponseBody = 1024

// AttemptRecorder appends one delivery attempt row. Rows are immutable once
// written.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt domain.DeliveryAttempt) error
}

// Deliverer performs a single signed webhook delivery, classifies the
// outcome, computes the retry schedule, and appends the log row. It never
// propagates delivery failures to its caller beyond the returned outcome.
type Deliverer struct {
	httpClient *http.Client
	attempts   AttemptRecorder
	breaker    *engine.CircuitBreaker
	hub        *ws.Hub
	logger     *slog.Logger
	now        func() time.Time
}

// NewDeliverer creates a deliverer with a bounded-timeout HTTP client.
// breaker and hub may be nil.
func NewDeliverer(attempts AttemptRecorder, breaker *engine.CircuitBreaker, hub *ws.Hub, timeout time.Duration, logger *slog.Logger) *Deliverer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Deliverer{
		httpClient: &http.Client{Timeout: timeout},
		attempts:   attempts,
		breaker:    breaker,
		hub:        hub,
		logger:     logger,
		now:        time.Now,
	}
}

// Deliver sends the signed payload to the subscription's target URL.
// 2xx is success. Anything else — including an open circuit, a network
// error, or a timeout — is a transient failure: retried while retryCount
// is below the subscription's max, terminal afterwards. Every call appends
// exactly one attempt row.
func (d *Deliverer) Deliver(ctx context.Context, job engine.DeliveryJob) domain.DeliveryOutcome {
	start := d.now()

	if d.breaker != nil {
		if state, allowed := d.breaker.AllowRequest(ctx, job.SubscriptionID); !allowed {
			return d.finish(ctx, job, start, nil, "", fmt.Sprintf("circuit breaker %s", state))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.TargetURL, bytes.NewReader(job.Payload))
	if err != nil {
		return d.finish(ctx, job, start, nil, "", fmt.Sprintf("failed to create request: %v", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signature.Header, signature.Sign(job.Payload, job.SigningKey))
	req.Header.Set("X-Webhook-Event", string(job.EventType))
	req.Header.Set("X-Webhook-Attempt", fmt.Sprintf("%d", job.RetryCount))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return d.finish(ctx, job, start, nil, "", fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	return d.finish(ctx, job, start, &resp.StatusCode, string(body), "")
}

// finish classifies the attempt, appends the log row, and emits breaker,
// metrics, and websocket updates.
func (d *Deliverer) finish(ctx context.Context, job engine.DeliveryJob, start time.Time, statusCode *int, responseBody, errMsg string) domain.DeliveryOutcome {
	elapsed := d.now().Sub(start).Milliseconds()

	success := errMsg == "" && statusCode != nil && *statusCode >= 200 && *statusCode < 300

	var nextRetryAt *time.Time
	if !success && job.RetryCount < job.MaxRetries {
		at := d.now().Add(job.RetryDelay)
		nextRetryAt = &at
	}

	outcome := domain.DeliveryOutcome{
		Success:        success,
		HTTPStatus:     statusCode,
		ResponseBody:   responseBody,
		ResponseTimeMs: elapsed,
		ErrorMessage:   errMsg,
		NextRetryAt:    nextRetryAt,
	}

	attempt := domain.DeliveryAttempt{
		SubscriptionID: job.SubscriptionID,
		TenantID:       job.TenantID,
		EventType:      job.EventType,
		ResourceID:     job.ResourceID,
		Payload:        job.Payload,
		HTTPStatus:     statusCode,
		ResponseTimeMs: int(elapsed),
		Success:        success,
		RetryCount:     job.RetryCount,
		NextRetryAt:    nextRetryAt,
	}
	if responseBody != "" {
		attempt.ResponseBody = &responseBody
	}
	if errMsg != "" {
		attempt.ErrorMessage = &errMsg
	}

	if err := d.attempts.RecordAttempt(ctx, attempt); err != nil {
		d.logger.Error("failed to record delivery attempt",
			"error", err,
			"subscription_id", job.SubscriptionID,
			"event_type", job.EventType,
		)
	}

	feedType := "delivery_success"
	metricOutcome := "success"
	switch {
	case success:
		if d.breaker != nil {
			d.breaker.RecordSuccess(ctx, job.SubscriptionID)
		}
	case nextRetryAt != nil:
		feedType = "delivery_retrying"
		metricOutcome = "failed"
		metrics.RetriesScheduled.Inc()
		if d.breaker != nil {
			d.breaker.RecordFailure(ctx, job.SubscriptionID)
		}
	default:
		feedType = "delivery_exhausted"
		metricOutcome = "exhausted"
		if d.breaker != nil {
			d.breaker.RecordFailure(ctx, job.SubscriptionID)
		}
	}

	metrics.Deliveries.WithLabelValues(string(job.EventType), metricOutcome).Inc()
	metrics.DeliveryLatency.WithLabelValues(string(job.EventType), metricOutcome).Observe(float64(elapsed))

	if d.hub != nil {
		d.hub.Broadcast(ws.DeliveryEvent{
			Type:           feedType,
			SubscriptionID: job.SubscriptionID,
			TenantID:       job.TenantID,
			TargetURL:      job.TargetURL,
			EventType:      string(job.EventType),
			ResourceID:     job.ResourceID,
			RetryCount:     job.RetryCount,
			StatusCode:     statusCode,
			ResponseMs:     elapsed,
			Error:          errMsg,
			Timestamp:      d.now(),
		})
	}

	if success {
		d.logger.Info("delivery successful",
			"subscription_id", job.SubscriptionID,
			"event_type", job.EventType,
			"retry_count", job.RetryCount,
			"status_code", statusCode,
			"response_time_ms", elapsed,
		)
	} else {
		d.logger.Warn("delivery failed",
			"subscription_id", job.SubscriptionID,
			"event_type", job.EventType,
			"retry_count", job.RetryCount,
			"error", errMsg,
			"status_code", statusCode,
			"response_time_ms", elapsed,
			"next_retry_at", nextRetryAt,
		)
	}

	return outcome
}
