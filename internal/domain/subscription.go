package domain

import (
	"time"
)

// Subscription is an admin-registered external endpoint plus the rule
// describing which domain events it receives.
//
// Exactly one of ResourceID / ResourceTypeID is set, or neither (tenant-wide).
// IncludeSubResources is only meaningful when ResourceID is set.
type Subscription struct {
	ID                  string     `json:"id"`
	TenantID            string     `json:"tenant_id"`
	Name                string     `json:"name"`
	TargetURL           string     `json:"target_url"`
	Enabled             bool       `json:"enabled"`
	ResourceID          *string    `json:"resource_id,omitempty"`
	ResourceTypeID      *string    `json:"resource_type_id,omitempty"`
	IncludeSubResources bool       `json:"include_sub_resources"`
	EventType           EventType  `json:"event_type"`
	SecretHash          string     `json:"-"`
	MaxRetries          int        `json:"max_retries"`
	RetryDelaySeconds   int        `json:"retry_delay_seconds"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	DeletedAt           *time.Time `json:"-"`
}

// Matches reports whether the subscription's event filter covers t.
func (s *Subscription) MatchesEventType(t EventType) bool {
	return s.EventType == EventTypeWildcard || s.EventType == t
}

// RetryDelay returns the configured fixed delay between attempts.
func (s *Subscription) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelaySeconds) * time.Second
}

const (
	DefaultMaxRetries        = 3
	DefaultRetryDelaySeconds = 60
)

// CreateSubscriptionRequest is the management-surface create payload.
type CreateSubscriptionRequest struct {
	Name                string  `json:"name"`
	TargetURL           string  `json:"target_url"`
	ResourceID          *string `json:"resource_id,omitempty"`
	ResourceTypeID      *string `json:"resource_type_id,omitempty"`
	IncludeSubResources bool    `json:"include_sub_resources"`
	EventType           string  `json:"event_type"`
	MaxRetries          *int    `json:"max_retries,omitempty"`
	RetryDelaySeconds   *int    `json:"retry_delay_seconds,omitempty"`
}

// UpdateSubscriptionRequest patches a subscription. The secret is never
// updatable. A present ResourceID/ResourceTypeID replaces the scope; setting
// TenantWide clears it.
type UpdateSubscriptionRequest struct {
	Name                *string `json:"name,omitempty"`
	TargetURL           *string `json:"target_url,omitempty"`
	Enabled             *bool   `json:"enabled,omitempty"`
	ResourceID          *string `json:"resource_id,omitempty"`
	ResourceTypeID      *string `json:"resource_type_id,omitempty"`
	TenantWide          bool    `json:"tenant_wide,omitempty"`
	IncludeSubResources *bool   `json:"include_sub_resources,omitempty"`
	EventType           *string `json:"event_type,omitempty"`
	MaxRetries          *int    `json:"max_retries,omitempty"`
	RetryDelaySeconds   *int    `json:"retry_delay_seconds,omitempty"`
}

// CreateSubscriptionResponse carries the plaintext secret. This is the only
// place it ever appears; the server stores a one-way digest.
type CreateSubscriptionResponse struct {
	Subscription
	Secret string `json:"secret"`
}
