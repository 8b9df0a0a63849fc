package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookwise/webhook-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

// GetResource returns a resource by id, nil when it does not exist. The
// matcher walks parent links through this, so a missing row is not an error.
func (s *PostgresStore) GetResource(ctx context.Context, id string) (*domain.Resource, error) {
	var r domain.Resource
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, resource_type_id, parent_id, name, status, created_at
		FROM resources WHERE id = $1
	`, id).Scan(&r.ID, &r.TenantID, &r.ResourceTypeID, &r.ParentID, &r.Name, &r.Status, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying resource: %w", err)
	}
	return &r, nil
}

// ResourceExists reports whether a resource belongs to the tenant.
func (s *PostgresStore) ResourceExists(ctx context.Context, tenantID, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM resources WHERE id = $1 AND tenant_id = $2)
	`, id, tenantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking resource: %w", err)
	}
	return exists, nil
}

// ResourceTypeExists reports whether a resource type belongs to the tenant.
func (s *PostgresStore) ResourceTypeExists(ctx context.Context, tenantID, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM resource_types WHERE id = $1 AND tenant_id = $2)
	`, id, tenantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking resource type: %w", err)
	}
	return exists, nil
}
