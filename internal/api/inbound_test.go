package api

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bookwise/webhook-service/internal/domain"
	"github.com/bookwise/webhook-service/internal/engine"
	"github.com/bookwise/webhook-service/internal/signature"
	"github.com/redis/go-redis/v9"
)

type fakeInboundStore struct {
	subs          map[string]*domain.Subscription
	notifications []domain.Notification
}

func (f *fakeInboundStore) GetSubscriptionByID(_ context.Context, id string) (*domain.Subscription, error) {
	return f.subs[id], nil
}

func (f *fakeInboundStore) CreateNotification(_ context.Context, n domain.Notification) (*domain.Notification, error) {
	n.ID = "n-1"
	f.notifications = append(f.notifications, n)
	return &n, nil
}

func setupInbound(t *testing.T, rateLimit int) (*fakeInboundStore, *InboundHandler, string) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	key := signature.DeriveKey("whsec_0123456789abcdef")

	fake := &fakeInboundStore{
		subs: map[string]*domain.Subscription{
			"sub-1": {
				ID:         "sub-1",
				TenantID:   "tenant-1",
				Enabled:    true,
				SecretHash: key,
			},
		},
	}

	h := NewInboundHandler(fake, engine.NewRateLimiter(client, logger), rateLimit, logger)

	return fake, h, key
}

func postInbound(h *InboundHandler, body []byte, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inbound", bytes.NewReader(body))
	if sig != "" {
		req.Header.Set(signature.Header, sig)
	}
	rec := httptest.NewRecorder()
	h.Receive(rec, req)
	return rec
}

func TestInboundValidSignatureCreatesNotification(t *testing.T) {
	fake, h, key := setupInbound(t, 100)

	body := []byte(`{"subscription_id":"sub-1","user_id":"user-7","message":"maintenance scheduled","severity":"warning"}`)
	rec := postInbound(h, body, signature.Sign(body, key))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(fake.notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(fake.notifications))
	}

	n := fake.notifications[0]
	if n.TenantID != "tenant-1" {
		t.Errorf("expected tenant from subscription, got %q", n.TenantID)
	}
	if n.UserID != "user-7" || n.Severity != domain.SeverityWarning {
		t.Errorf("unexpected notification: %+v", n)
	}
}

func TestInboundWrongSecretRejected(t *testing.T) {
	fake, h, _ := setupInbound(t, 100)

	body := []byte(`{"subscription_id":"sub-1","message":"should not land"}`)
	wrongKey := signature.DeriveKey("whsec_wrong")
	rec := postInbound(h, body, signature.Sign(body, wrongKey))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(fake.notifications) != 0 {
		t.Fatalf("rejected call must not create a notification, got %d", len(fake.notifications))
	}
}

func TestInboundMissingSignatureRejected(t *testing.T) {
	fake, h, _ := setupInbound(t, 100)

	rec := postInbound(h, []byte(`{"subscription_id":"sub-1","message":"x"}`), "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(fake.notifications) != 0 {
		t.Fatalf("expected no notifications, got %d", len(fake.notifications))
	}
}

func TestInboundTamperedBodyRejected(t *testing.T) {
	fake, h, key := setupInbound(t, 100)

	signed := []byte(`{"subscription_id":"sub-1","message":"original"}`)
	sig := signature.Sign(signed, key)
	tampered := []byte(`{"subscription_id":"sub-1","message":"altered"}`)

	rec := postInbound(h, tampered, sig)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(fake.notifications) != 0 {
		t.Fatalf("expected no notifications, got %d", len(fake.notifications))
	}
}

func TestInboundUnknownSubscription(t *testing.T) {
	_, h, key := setupInbound(t, 100)

	body := []byte(`{"subscription_id":"missing","message":"x"}`)
	rec := postInbound(h, body, signature.Sign(body, key))

	// Indistinguishable from a bad signature
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestInboundRateLimited(t *testing.T) {
	_, h, key := setupInbound(t, 1)

	body := []byte(`{"subscription_id":"sub-1","message":"x"}`)
	sig := signature.Sign(body, key)

	if rec := postInbound(h, body, sig); rec.Code != http.StatusAccepted {
		t.Fatalf("first call should pass, got %d", rec.Code)
	}
	if rec := postInbound(h, body, sig); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second call should be limited, got %d", rec.Code)
	}
}

func TestInboundDefaultsSeverity(t *testing.T) {
	fake, h, key := setupInbound(t, 100)

	body := []byte(`{"subscription_id":"sub-1","message":"plain"}`)
	rec := postInbound(h, body, signature.Sign(body, key))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if fake.notifications[0].Severity != domain.SeverityInfo {
		t.Errorf("expected default severity info, got %q", fake.notifications[0].Severity)
	}
}

func TestInboundInvalidSeverity(t *testing.T) {
	fake, h, key := setupInbound(t, 100)

	body := []byte(`{"subscription_id":"sub-1","message":"x","severity":"catastrophic"}`)
	rec := postInbound(h, body, signature.Sign(body, key))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(fake.notifications) != 0 {
		t.Fatalf("expected no notifications, got %d", len(fake.notifications))
	}
}
