package engine

import (
	"encoding/json"
	"time"

	"github.com/bookwise/webhook-service/internal/domain"
)

// DeliveryJob is a single webhook delivery task handed to the worker pool.
// Payload holds the exact envelope bytes to transmit; SigningKey is the
// subscription's stored key digest.
type DeliveryJob struct {
	SubscriptionID string           `json:"subscription_id"`
	TenantID       string           `json:"tenant_id"`
	TargetURL      string           `json:"target_url"`
	SigningKey     string           `json:"signing_key"`
	EventType      domain.EventType `json:"event_type"`
	ResourceID     string           `json:"resource_id"`
	Payload        json.RawMessage  `json:"payload"`
	RetryCount     int              `json:"retry_count"`
	MaxRetries     int              `json:"max_retries"`
	RetryDelay     time.Duration    `json:"retry_delay"`
}

// JobFromSubscription builds the job for one attempt against sub.
func JobFromSubscription(sub domain.Subscription, event domain.Event, payload []byte, retryCount int) DeliveryJob {
	return DeliveryJob{
		SubscriptionID: sub.ID,
		TenantID:       sub.TenantID,
		TargetURL:      sub.TargetURL,
		SigningKey:     sub.SecretHash,
		EventType:      event.Type,
		ResourceID:     event.ResourceID,
		Payload:        payload,
		RetryCount:     retryCount,
		MaxRetries:     sub.MaxRetries,
		RetryDelay:     sub.RetryDelay(),
	}
}
