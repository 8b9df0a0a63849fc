package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bookwise/webhook-service/internal/domain"
	"github.com/bookwise/webhook-service/internal/metrics"
)

// JobSink accepts delivery jobs for asynchronous execution. Submit blocks
// until the job is queued; TrySubmit never blocks and reports whether the
// job was accepted.
type JobSink interface {
	Submit(job DeliveryJob)
	TrySubmit(job DeliveryJob) bool
}

// Publisher fans a domain event out to every matching subscription. The
// caller only learns how many deliveries were scheduled, never whether any
// succeeded; all delivery failures are contained downstream.
type Publisher struct {
	matcher *Matcher
	builder *PayloadBuilder
	sink    JobSink
	logger  *slog.Logger
}

func NewPublisher(matcher *Matcher, builder *PayloadBuilder, sink JobSink, logger *slog.Logger) *Publisher {
	return &Publisher{
		matcher: matcher,
		builder: builder,
		sink:    sink,
		logger:  logger,
	}
}

// Publish matches the event and queues one first attempt per matched
// subscription. Returns the number of deliveries scheduled.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) (int, error) {
	matched, err := p.matcher.Match(ctx, event)
	if err != nil {
		return 0, fmt.Errorf("matching subscriptions: %w", err)
	}

	if len(matched) == 0 {
		p.logger.Info("no matching subscriptions",
			"event_type", event.Type,
			"tenant_id", event.TenantID,
			"resource_id", event.ResourceID,
		)
		return 0, nil
	}

	queued := 0
	for _, sub := range matched {
		payload, err := p.builder.Build(event, sub.ID)
		if err != nil {
			p.logger.Error("failed to build payload",
				"error", err,
				"subscription_id", sub.ID,
			)
			continue
		}

		// Publishing runs on the event source's request thread, so the
		// handoff must never block on subscriber I/O.
		if !p.sink.TrySubmit(JobFromSubscription(sub, event, payload, 0)) {
			metrics.DeliveriesDropped.Inc()
			p.logger.Error("delivery queue saturated, dropping delivery",
				"subscription_id", sub.ID,
				"event_type", event.Type,
			)
			continue
		}
		queued++
	}

	p.logger.Info("event published",
		"event_type", event.Type,
		"tenant_id", event.TenantID,
		"resource_id", event.ResourceID,
		"deliveries_queued", queued,
	)

	return queued, nil
}
