package domain

import (
	"encoding/json"
	"time"
)

// DeliveryAttempt is one logged try to deliver an event to a subscription.
// Rows are append-only: a retry produces a new row, never a mutation of the
// prior one. ClaimedAt and the nulling of NextRetryAt are scheduling state,
// not outcome state.
type DeliveryAttempt struct {
	ID             string          `json:"id"`
	SubscriptionID string          `json:"subscription_id"`
	TenantID       string          `json:"tenant_id"`
	EventType      EventType       `json:"event_type"`
	ResourceID     string          `json:"resource_id"`
	Payload        json.RawMessage `json:"payload"`
	HTTPStatus     *int            `json:"http_status,omitempty"`
	ResponseBody   *string         `json:"response_body,omitempty"`
	ResponseTimeMs int             `json:"response_time_ms"`
	ErrorMessage   *string         `json:"error_message,omitempty"`
	Success        bool            `json:"success"`
	RetryCount     int             `json:"retry_count"`
	NextRetryAt    *time.Time      `json:"next_retry_at,omitempty"`
	ClaimedAt      *time.Time      `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}

// DeliveryOutcome is what the dispatcher reports for a single attempt.
type DeliveryOutcome struct {
	Success        bool       `json:"success"`
	HTTPStatus     *int       `json:"http_status,omitempty"`
	ResponseBody   string     `json:"response_body,omitempty"`
	ResponseTimeMs int64      `json:"response_time_ms"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
}
