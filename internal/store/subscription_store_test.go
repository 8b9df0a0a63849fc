package store

import (
	"context"
	"errors"
	"testing"

	"github.com/bookwise/webhook-service/internal/domain"
)

func intPtr(v int) *int { return &v }

// Validation failures must be reported before any query runs, so a zero-value
// store is enough to exercise them.

func TestCreateSubscription_RejectsNegativeRetryPolicy(t *testing.T) {
	s := &PostgresStore{}

	tests := []struct {
		name string
		req  domain.CreateSubscriptionRequest
	}{
		{
			name: "negative max_retries",
			req: domain.CreateSubscriptionRequest{
				Name:       "hooks",
				TargetURL:  "http://example.com/hook",
				EventType:  "*",
				MaxRetries: intPtr(-1),
			},
		},
		{
			name: "negative retry_delay_seconds",
			req: domain.CreateSubscriptionRequest{
				Name:              "hooks",
				TargetURL:         "http://example.com/hook",
				EventType:         "*",
				RetryDelaySeconds: intPtr(-30),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.CreateSubscription(context.Background(), "t1", tt.req)
			if !errors.Is(err, ErrInvalidRetryPolicy) {
				t.Errorf("err = %v, want ErrInvalidRetryPolicy", err)
			}
		})
	}
}

func TestUpdateSubscription_RejectsNegativeRetryPolicy(t *testing.T) {
	s := &PostgresStore{}

	tests := []struct {
		name string
		req  domain.UpdateSubscriptionRequest
	}{
		{name: "negative max_retries", req: domain.UpdateSubscriptionRequest{MaxRetries: intPtr(-5)}},
		{name: "negative retry_delay_seconds", req: domain.UpdateSubscriptionRequest{RetryDelaySeconds: intPtr(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.UpdateSubscription(context.Background(), "t1", "sub-1", tt.req)
			if !errors.Is(err, ErrInvalidRetryPolicy) {
				t.Errorf("err = %v, want ErrInvalidRetryPolicy", err)
			}
		})
	}
}

func TestCreateSubscription_RejectsDualScope(t *testing.T) {
	s := &PostgresStore{}
	rid, rtid := "room-1", "room"

	_, _, err := s.CreateSubscription(context.Background(), "t1", domain.CreateSubscriptionRequest{
		Name:           "hooks",
		TargetURL:      "http://example.com/hook",
		EventType:      "*",
		ResourceID:     &rid,
		ResourceTypeID: &rtid,
	})
	if !errors.Is(err, ErrInvalidScope) {
		t.Errorf("err = %v, want ErrInvalidScope", err)
	}
}
