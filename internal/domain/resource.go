package domain

import "time"

// Resource is a bookable resource owned by the booking CRUD service. This
// subsystem only reads resources, for scope validation and ancestor matching.
// ParentID links form a tree.
type Resource struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	ResourceTypeID string    `json:"resource_type_id"`
	ParentID       *string   `json:"parent_id,omitempty"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}
