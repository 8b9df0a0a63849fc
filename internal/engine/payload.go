package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bookwise/webhook-service/internal/domain"
)

// Envelope is the canonical outbound wire format. Data is the same
// representation the REST layer returns for the affected entity.
type Envelope struct {
	EventType      string          `json:"eventType"`
	Timestamp      string          `json:"timestamp"`
	SubscriptionID string          `json:"subscriptionId"`
	Data           json.RawMessage `json:"data"`
}

// PayloadBuilder serializes domain events into signed-payload bytes.
// The clock is injected so tests can freeze it.
type PayloadBuilder struct {
	now func() time.Time
}

func NewPayloadBuilder(now func() time.Time) *PayloadBuilder {
	if now == nil {
		now = time.Now
	}
	return &PayloadBuilder{now: now}
}

// Build produces the exact bytes to transmit for event on behalf of
// subscriptionID. Deterministic given its inputs and a frozen clock.
func (b *PayloadBuilder) Build(event domain.Event, subscriptionID string) ([]byte, error) {
	env := Envelope{
		EventType:      string(event.Type),
		Timestamp:      b.now().UTC().Format(time.RFC3339),
		SubscriptionID: subscriptionID,
		Data:           event.Data,
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshaling envelope: %w", err)
	}
	return payload, nil
}
