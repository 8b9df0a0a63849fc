package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bookwise/webhook-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const deliveryColumns = `id, subscription_id, tenant_id, event_type, resource_id, payload,
	http_status, response_body, response_time_ms, error_message, success,
	retry_count, next_retry_at, claimed_at, created_at`

func scanDelivery(row pgx.Row) (*domain.DeliveryAttempt, error) {
	var a domain.DeliveryAttempt
	err := row.Scan(
		&a.ID, &a.SubscriptionID, &a.TenantID, &a.EventType, &a.ResourceID, &a.Payload,
		&a.HTTPStatus, &a.ResponseBody, &a.ResponseTimeMs, &a.ErrorMessage, &a.Success,
		&a.RetryCount, &a.NextRetryAt, &a.ClaimedAt, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// RecordAttempt appends one delivery attempt row. Rows are never updated
// after insertion except for the retry claim and cancellation markers.
func (s *PostgresStore) RecordAttempt(ctx context.Context, attempt domain.DeliveryAttempt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO delivery_attempts (id, subscription_id, tenant_id, event_type, resource_id,
			payload, http_status, response_body, response_time_ms, error_message, success,
			retry_count, next_retry_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		uuid.NewString(), attempt.SubscriptionID, attempt.TenantID, attempt.EventType,
		attempt.ResourceID, attempt.Payload, attempt.HTTPStatus, attempt.ResponseBody,
		attempt.ResponseTimeMs, attempt.ErrorMessage, attempt.Success,
		attempt.RetryCount, attempt.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("inserting delivery attempt: %w", err)
	}
	return nil
}

// AttemptFilter narrows ListAttempts. TenantID is mandatory; everything else
// is optional.
type AttemptFilter struct {
	TenantID       string
	SubscriptionID string
	Success        *bool
	Search         string
	Limit          int
	Offset         int
}

// ListAttempts returns delivery history for a tenant, newest first.
func (s *PostgresStore) ListAttempts(ctx context.Context, filter AttemptFilter) ([]domain.DeliveryAttempt, error) {
	conditions := []string{"tenant_id = $1"}
	args := []interface{}{filter.TenantID}
	argIdx := 2

	if filter.SubscriptionID != "" {
		conditions = append(conditions, fmt.Sprintf("subscription_id = $%d", argIdx))
		args = append(args, filter.SubscriptionID)
		argIdx++
	}
	if filter.Success != nil {
		conditions = append(conditions, fmt.Sprintf("success = $%d", argIdx))
		args = append(args, *filter.Success)
		argIdx++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(event_type ILIKE $%d OR resource_id ILIKE $%d OR coalesce(response_body, '') ILIKE $%d OR coalesce(error_message, '') ILIKE $%d)",
			argIdx, argIdx, argIdx, argIdx))
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT %s FROM delivery_attempts
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, deliveryColumns, strings.Join(conditions, " AND "), argIdx, argIdx+1)
	args = append(args, limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying delivery attempts: %w", err)
	}
	defer rows.Close()

	attempts := []domain.DeliveryAttempt{}
	for rows.Next() {
		a, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery attempt: %w", err)
		}
		attempts = append(attempts, *a)
	}

	return attempts, nil
}

// GetAttempt returns a single attempt scoped to a tenant, nil when absent.
func (s *PostgresStore) GetAttempt(ctx context.Context, tenantID, id string) (*domain.DeliveryAttempt, error) {
	a, err := scanDelivery(s.pool.QueryRow(ctx, `
		SELECT `+deliveryColumns+` FROM delivery_attempts WHERE id = $1 AND tenant_id = $2
	`, id, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying delivery attempt: %w", err)
	}
	return a, nil
}

// DueRetries returns unclaimed failed attempts whose retry time has passed,
// oldest first.
func (s *PostgresStore) DueRetries(ctx context.Context, limit int) ([]domain.DeliveryAttempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+deliveryColumns+` FROM delivery_attempts
		WHERE success = false AND next_retry_at IS NOT NULL
			AND next_retry_at <= NOW() AND claimed_at IS NULL
		ORDER BY next_retry_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying due retries: %w", err)
	}
	defer rows.Close()

	var attempts []domain.DeliveryAttempt
	for rows.Next() {
		a, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning due retry: %w", err)
		}
		attempts = append(attempts, *a)
	}

	return attempts, nil
}

// ClaimRetry marks an attempt as taken by this scheduler pass. The
// conditional update guarantees each attempt is redriven at most once even
// with concurrent schedulers.
func (s *PostgresStore) ClaimRetry(ctx context.Context, attemptID string) (bool, error) {
	result, err := s.pool.Exec(ctx, `
		UPDATE delivery_attempts SET claimed_at = NOW()
		WHERE id = $1 AND claimed_at IS NULL
	`, attemptID)
	if err != nil {
		return false, fmt.Errorf("claiming retry: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// CancelPendingRetries clears the retry schedule of every unclaimed failed
// attempt for a subscription. Called when a subscription is disabled or
// deleted; the attempt rows themselves are retained.
func (s *PostgresStore) CancelPendingRetries(ctx context.Context, subscriptionID string) (int64, error) {
	result, err := s.pool.Exec(ctx, `
		UPDATE delivery_attempts SET next_retry_at = NULL
		WHERE subscription_id = $1 AND success = false
			AND next_retry_at IS NOT NULL AND claimed_at IS NULL
	`, subscriptionID)
	if err != nil {
		return 0, fmt.Errorf("cancelling pending retries: %w", err)
	}
	return result.RowsAffected(), nil
}
