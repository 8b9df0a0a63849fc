package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bookwise/webhook-service/internal/domain"
	"github.com/bookwise/webhook-service/internal/signature"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Validation failures surfaced to the management API as 400s.
var (
	ErrInvalidScope        = errors.New("exactly one of resource_id and resource_type_id may be set")
	ErrScopeTargetNotFound = errors.New("scope target does not exist in this tenant")
	ErrInvalidEventType    = errors.New("unknown event type filter")
	ErrInvalidRetryPolicy  = errors.New("max_retries and retry_delay_seconds must be non-negative")
)

func validRetryPolicy(maxRetries, retryDelaySeconds *int) bool {
	if maxRetries != nil && *maxRetries < 0 {
		return false
	}
	if retryDelaySeconds != nil && *retryDelaySeconds < 0 {
		return false
	}
	return true
}

const subscriptionColumns = `id, tenant_id, name, target_url, enabled, resource_id, resource_type_id,
	include_sub_resources, event_type, secret_hash, max_retries, retry_delay_seconds,
	created_at, updated_at`

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(
		&sub.ID, &sub.TenantID, &sub.Name, &sub.TargetURL, &sub.Enabled,
		&sub.ResourceID, &sub.ResourceTypeID, &sub.IncludeSubResources,
		&sub.EventType, &sub.SecretHash, &sub.MaxRetries, &sub.RetryDelaySeconds,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateSubscription validates the scope, generates the one-time secret, and
// inserts the subscription. The returned plaintext secret is surfaced to the
// caller exactly once; only its digest is stored.
func (s *PostgresStore) CreateSubscription(ctx context.Context, tenantID string, req domain.CreateSubscriptionRequest) (*domain.Subscription, string, error) {
	if req.ResourceID != nil && req.ResourceTypeID != nil {
		return nil, "", ErrInvalidScope
	}
	if !domain.EventType(req.EventType).ValidFilter() {
		return nil, "", ErrInvalidEventType
	}
	if !validRetryPolicy(req.MaxRetries, req.RetryDelaySeconds) {
		return nil, "", ErrInvalidRetryPolicy
	}

	if err := s.validateScope(ctx, tenantID, req.ResourceID, req.ResourceTypeID); err != nil {
		return nil, "", err
	}

	secret, err := signature.NewSecret()
	if err != nil {
		return nil, "", fmt.Errorf("generating secret: %w", err)
	}

	maxRetries := domain.DefaultMaxRetries
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}
	retryDelay := domain.DefaultRetryDelaySeconds
	if req.RetryDelaySeconds != nil {
		retryDelay = *req.RetryDelaySeconds
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO subscriptions (id, tenant_id, name, target_url, enabled, resource_id,
			resource_type_id, include_sub_resources, event_type, secret_hash, max_retries, retry_delay_seconds)
		VALUES ($1, $2, $3, $4, true, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+subscriptionColumns,
		uuid.NewString(), tenantID, req.Name, req.TargetURL, req.ResourceID,
		req.ResourceTypeID, req.IncludeSubResources, req.EventType,
		signature.DeriveKey(secret), maxRetries, retryDelay,
	)

	sub, err := scanSubscription(row)
	if err != nil {
		return nil, "", fmt.Errorf("inserting subscription: %w", err)
	}

	return sub, secret, nil
}

// validateScope fails fast when a scope references a resource or resource
// type that does not exist in the tenant.
func (s *PostgresStore) validateScope(ctx context.Context, tenantID string, resourceID, resourceTypeID *string) error {
	if resourceID != nil {
		ok, err := s.ResourceExists(ctx, tenantID, *resourceID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrScopeTargetNotFound
		}
	}
	if resourceTypeID != nil {
		ok, err := s.ResourceTypeExists(ctx, tenantID, *resourceTypeID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrScopeTargetNotFound
		}
	}
	return nil
}

// GetSubscription returns a tenant's subscription, or nil when it does not
// exist (or was deleted).
func (s *PostgresStore) GetSubscription(ctx context.Context, tenantID, id string) (*domain.Subscription, error) {
	sub, err := scanSubscription(s.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`, id, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying subscription: %w", err)
	}
	return sub, nil
}

// GetSubscriptionByID resolves a subscription regardless of tenant. Used by
// the retry scheduler and the inbound receiver; deleted rows resolve to nil.
func (s *PostgresStore) GetSubscriptionByID(ctx context.Context, id string) (*domain.Subscription, error) {
	sub, err := scanSubscription(s.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions WHERE id = $1 AND deleted_at IS NULL
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying subscription: %w", err)
	}
	return sub, nil
}

// ListSubscriptions returns all live subscriptions of a tenant.
func (s *PostgresStore) ListSubscriptions(ctx context.Context, tenantID string) ([]domain.Subscription, error) {
	return s.listSubscriptions(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`, tenantID)
}

// ListEnabledSubscriptions returns the matcher's candidate set.
func (s *PostgresStore) ListEnabledSubscriptions(ctx context.Context, tenantID string) ([]domain.Subscription, error) {
	return s.listSubscriptions(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE tenant_id = $1 AND enabled = true AND deleted_at IS NULL
	`, tenantID)
}

func (s *PostgresStore) listSubscriptions(ctx context.Context, query string, args ...interface{}) ([]domain.Subscription, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		subs = append(subs, *sub)
	}

	if subs == nil {
		subs = []domain.Subscription{}
	}

	return subs, nil
}

// UpdateSubscription patches a subscription. The secret is never touched.
// Disabling cancels any still-pending retries.
func (s *PostgresStore) UpdateSubscription(ctx context.Context, tenantID, id string, req domain.UpdateSubscriptionRequest) (*domain.Subscription, error) {
	if req.ResourceID != nil && req.ResourceTypeID != nil {
		return nil, ErrInvalidScope
	}
	if req.EventType != nil && !domain.EventType(*req.EventType).ValidFilter() {
		return nil, ErrInvalidEventType
	}
	if !validRetryPolicy(req.MaxRetries, req.RetryDelaySeconds) {
		return nil, ErrInvalidRetryPolicy
	}
	if req.ResourceID != nil || req.ResourceTypeID != nil {
		if err := s.validateScope(ctx, tenantID, req.ResourceID, req.ResourceTypeID); err != nil {
			return nil, err
		}
	}

	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	addSet := func(col string, val interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, argIdx))
		args = append(args, val)
		argIdx++
	}

	if req.Name != nil {
		addSet("name", *req.Name)
	}
	if req.TargetURL != nil {
		addSet("target_url", *req.TargetURL)
	}
	if req.Enabled != nil {
		addSet("enabled", *req.Enabled)
	}
	switch {
	case req.ResourceID != nil:
		addSet("resource_id", *req.ResourceID)
		setClauses = append(setClauses, "resource_type_id = NULL")
	case req.ResourceTypeID != nil:
		addSet("resource_type_id", *req.ResourceTypeID)
		setClauses = append(setClauses, "resource_id = NULL")
	case req.TenantWide:
		setClauses = append(setClauses, "resource_id = NULL", "resource_type_id = NULL")
	}
	if req.IncludeSubResources != nil {
		addSet("include_sub_resources", *req.IncludeSubResources)
	}
	if req.EventType != nil {
		addSet("event_type", *req.EventType)
	}
	if req.MaxRetries != nil {
		addSet("max_retries", *req.MaxRetries)
	}
	if req.RetryDelaySeconds != nil {
		addSet("retry_delay_seconds", *req.RetryDelaySeconds)
	}

	if len(setClauses) == 0 {
		return s.GetSubscription(ctx, tenantID, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")

	query := fmt.Sprintf(`
		UPDATE subscriptions SET %s
		WHERE id = $%d AND tenant_id = $%d AND deleted_at IS NULL
		RETURNING `+subscriptionColumns,
		strings.Join(setClauses, ", "), argIdx, argIdx+1)
	args = append(args, id, tenantID)

	sub, err := scanSubscription(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("updating subscription: %w", err)
	}

	if req.Enabled != nil && !*req.Enabled {
		if _, err := s.CancelPendingRetries(ctx, id); err != nil {
			return nil, fmt.Errorf("cancelling pending retries: %w", err)
		}
	}

	return sub, nil
}

// DeleteSubscription soft-deletes a subscription and cancels its pending
// retries. Delivery logs are retained.
func (s *PostgresStore) DeleteSubscription(ctx context.Context, tenantID, id string) (bool, error) {
	result, err := s.pool.Exec(ctx, `
		UPDATE subscriptions SET deleted_at = NOW(), enabled = false, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`, id, tenantID)
	if err != nil {
		return false, fmt.Errorf("deleting subscription: %w", err)
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := s.CancelPendingRetries(ctx, id); err != nil {
		return false, fmt.Errorf("cancelling pending retries: %w", err)
	}

	return true, nil
}
