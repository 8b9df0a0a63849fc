package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/bookwise/webhook-service/internal/domain"
	"github.com/bookwise/webhook-service/internal/engine"
)

// RetrySource scans and claims delivery attempts that owe a retry.
// ClaimRetry must be atomic: it returns true for exactly one caller per row,
// so concurrent scheduler replicas never double-send.
type RetrySource interface {
	DueRetries(ctx context.Context, limit int) ([]domain.DeliveryAttempt, error)
	ClaimRetry(ctx context.Context, attemptID string) (bool, error)
}

// SubscriptionLookup resolves a subscription regardless of tenant. Deleted
// subscriptions resolve to nil.
type SubscriptionLookup interface {
	GetSubscriptionByID(ctx context.Context, id string) (*domain.Subscription, error)
}

// Scheduler periodically re-drives pending retries, independent of any
// request lifecycle. It claims each due row atomically, re-checks that the
// subscription still exists and is enabled, and hands a new job (retry
// count incremented) to the worker pool.
type Scheduler struct {
	retries  RetrySource
	subs     SubscriptionLookup
	sink     engine.JobSink
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewScheduler(retries RetrySource, subs SubscriptionLookup, sink engine.JobSink, interval time.Duration, batch int, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch <= 0 {
		batch = 50
	}
	return &Scheduler{
		retries:  retries,
		subs:     subs,
		sink:     sink,
		logger:   logger,
		interval: interval,
		batch:    batch,
	}
}

// Start runs the polling loop until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("retry scheduler started",
		"poll_interval", s.interval,
		"batch_size", s.batch,
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retry scheduler stopping")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce processes one batch of due retries.
func (s *Scheduler) RunOnce(ctx context.Context) {
	due, err := s.retries.DueRetries(ctx, s.batch)
	if err != nil {
		s.logger.Error("failed to scan due retries", "error", err)
		return
	}

	for _, attempt := range due {
		// Resolve the subscription before claiming so a transient lookup
		// failure leaves the row unclaimed and the next pass picks it up.
		sub, err := s.subs.GetSubscriptionByID(ctx, attempt.SubscriptionID)
		if err != nil {
			s.logger.Error("failed to load subscription for retry",
				"error", err,
				"subscription_id", attempt.SubscriptionID,
				"attempt_id", attempt.ID,
			)
			continue
		}

		claimed, err := s.retries.ClaimRetry(ctx, attempt.ID)
		if err != nil {
			s.logger.Error("failed to claim retry", "error", err, "attempt_id", attempt.ID)
			continue
		}
		if !claimed {
			// Another scheduler replica won the claim
			continue
		}

		if sub == nil || !sub.Enabled {
			s.logger.Info("skipping retry for removed or disabled subscription",
				"subscription_id", attempt.SubscriptionID,
				"attempt_id", attempt.ID,
			)
			continue
		}

		// The subscription's policy may have been lowered since the attempt
		// was scheduled; never send beyond its current max.
		if attempt.RetryCount+1 > sub.MaxRetries {
			s.logger.Info("skipping retry beyond subscription's max attempts",
				"subscription_id", sub.ID,
				"attempt_id", attempt.ID,
				"retry_count", attempt.RetryCount+1,
				"max_retries", sub.MaxRetries,
			)
			continue
		}

		s.logger.Info("re-driving delivery",
			"subscription_id", sub.ID,
			"event_type", attempt.EventType,
			"retry_count", attempt.RetryCount+1,
			"max_retries", sub.MaxRetries,
		)

		s.sink.Submit(engine.DeliveryJob{
			SubscriptionID: sub.ID,
			TenantID:       sub.TenantID,
			TargetURL:      sub.TargetURL,
			SigningKey:     sub.SecretHash,
			EventType:      attempt.EventType,
			ResourceID:     attempt.ResourceID,
			Payload:        attempt.Payload,
			RetryCount:     attempt.RetryCount + 1,
			MaxRetries:     sub.MaxRetries,
			RetryDelay:     sub.RetryDelay(),
		})
	}
}
