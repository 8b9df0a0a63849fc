package domain

import (
	"encoding/json"
	"time"
)

// EventType identifies a booking or resource lifecycle change.
type EventType string

const (
	EventBookingCreated        EventType = "booking.created"
	EventBookingUpdated        EventType = "booking.updated"
	EventBookingDeleted        EventType = "booking.deleted"
	EventBookingStart          EventType = "booking.start"
	EventBookingEnd            EventType = "booking.end"
	EventResourceCreated       EventType = "resource.created"
	EventResourceUpdated       EventType = "resource.updated"
	EventResourceStatusChanged EventType = "resource.status_changed"
	EventResourceDeleted       EventType = "resource.deleted"

	// EventTypeWildcard on a subscription matches every event type.
	EventTypeWildcard EventType = "*"
)

var knownEventTypes = map[EventType]struct{}{
	EventBookingCreated:        {},
	EventBookingUpdated:        {},
	EventBookingDeleted:        {},
	EventBookingStart:          {},
	EventBookingEnd:            {},
	EventResourceCreated:       {},
	EventResourceUpdated:       {},
	EventResourceStatusChanged: {},
	EventResourceDeleted:       {},
}

// Valid reports whether t is a concrete event type (the wildcard is not one).
func (t EventType) Valid() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// ValidFilter reports whether t is usable as a subscription event filter.
func (t EventType) ValidFilter() bool {
	return t == EventTypeWildcard || t.Valid()
}

// Event is a domain occurrence raised by the booking/resource CRUD services.
// Events are ephemeral: this subsystem matches and delivers them but never
// persists them.
type Event struct {
	Type           EventType       `json:"event_type"`
	TenantID       string          `json:"tenant_id"`
	ResourceID     string          `json:"resource_id"`
	ResourceTypeID string          `json:"resource_type_id"`
	OccurredAt     time.Time       `json:"occurred_at"`
	Data           json.RawMessage `json:"data"`
}
