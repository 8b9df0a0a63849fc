package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bookwise/webhook-service/internal/domain"
)

// maxAncestorDepth bounds the parent walk. The resource hierarchy is a tree,
// so this only guards against corrupt data.
const maxAncestorDepth = 32

// SubscriptionSource lists the enabled subscriptions of one tenant.
type SubscriptionSource interface {
	ListEnabledSubscriptions(ctx context.Context, tenantID string) ([]domain.Subscription, error)
}

// ResourceDirectory resolves resources by id. Returns nil (no error) for
// unknown ids.
type ResourceDirectory interface {
	GetResource(ctx context.Context, id string) (*domain.Resource, error)
}

// Matcher decides which subscriptions receive a given domain event.
type Matcher struct {
	subs      SubscriptionSource
	resources ResourceDirectory
	logger    *slog.Logger
}

func NewMatcher(subs SubscriptionSource, resources ResourceDirectory, logger *slog.Logger) *Matcher {
	return &Matcher{subs: subs, resources: resources, logger: logger}
}

// Match returns the enabled subscriptions of the event's tenant whose event
// filter and scope cover the event. The result is unordered; each entry is an
// independent delivery.
func (m *Matcher) Match(ctx context.Context, event domain.Event) ([]domain.Subscription, error) {
	candidates, err := m.subs.ListEnabledSubscriptions(ctx, event.TenantID)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions for tenant %s: %w", event.TenantID, err)
	}

	var matched []domain.Subscription
	for _, sub := range candidates {
		if !sub.Enabled {
			continue
		}
		if !sub.MatchesEventType(event.Type) {
			continue
		}

		ok, err := m.scopeMatches(ctx, sub, event)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, sub)
		}
	}

	return matched, nil
}

func (m *Matcher) scopeMatches(ctx context.Context, sub domain.Subscription, event domain.Event) (bool, error) {
	switch {
	case sub.ResourceTypeID != nil:
		return *sub.ResourceTypeID == event.ResourceTypeID, nil

	case sub.ResourceID != nil:
		if *sub.ResourceID == event.ResourceID {
			return true, nil
		}
		if !sub.IncludeSubResources {
			return false, nil
		}
		return m.isAncestor(ctx, *sub.ResourceID, event.ResourceID)

	default:
		// Tenant-wide.
		return true, nil
	}
}

// isAncestor walks the event resource's parent chain looking for ancestorID.
// A dangling resource id stops the walk without error: subscriptions whose
// target disappeared simply stop matching.
func (m *Matcher) isAncestor(ctx context.Context, ancestorID, resourceID string) (bool, error) {
	current := resourceID
	for depth := 0; depth < maxAncestorDepth; depth++ {
		res, err := m.resources.GetResource(ctx, current)
		if err != nil {
			return false, fmt.Errorf("resolving resource %s: %w", current, err)
		}
		if res == nil || res.ParentID == nil {
			return false, nil
		}
		if *res.ParentID == ancestorID {
			return true, nil
		}
		current = *res.ParentID
	}

	m.logger.Warn("ancestor walk exceeded depth bound",
		"resource_id", resourceID,
		"ancestor_id", ancestorID,
		"max_depth", maxAncestorDepth,
	)
	return false, nil
}
