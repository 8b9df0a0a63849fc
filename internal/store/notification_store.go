package store

import (
	"context"
	"fmt"

	"github.com/bookwise/webhook-service/internal/domain"
	"github.com/google/uuid"
)

// CreateNotification persists a notification raised by the inbound receiver.
func (s *PostgresStore) CreateNotification(ctx context.Context, n domain.Notification) (*domain.Notification, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, tenant_id, user_id, message, severity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, tenant_id, user_id, message, severity, created_at
	`, uuid.NewString(), n.TenantID, n.UserID, n.Message, n.Severity)

	var created domain.Notification
	err := row.Scan(&created.ID, &created.TenantID, &created.UserID,
		&created.Message, &created.Severity, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting notification: %w", err)
	}
	return &created, nil
}
