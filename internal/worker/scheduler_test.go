package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bookwise/webhook-service/internal/domain"
	"github.com/bookwise/webhook-service/internal/engine"
)

type fakeRetrySource struct {
	mu      sync.Mutex
	due     []domain.DeliveryAttempt
	claimed map[string]bool
}

func newFakeRetrySource(due ...domain.DeliveryAttempt) *fakeRetrySource {
	return &fakeRetrySource{due: due, claimed: make(map[string]bool)}
}

func (f *fakeRetrySource) DueRetries(_ context.Context, limit int) ([]domain.DeliveryAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DeliveryAttempt
	for _, a := range f.due {
		if !f.claimed[a.ID] && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRetrySource) ClaimRetry(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimed[id] {
		return false, nil
	}
	f.claimed[id] = true
	return true, nil
}

type fakeSubLookup struct {
	subs map[string]*domain.Subscription
}

func (f *fakeSubLookup) GetSubscriptionByID(_ context.Context, id string) (*domain.Subscription, error) {
	return f.subs[id], nil
}

type recordingSink struct {
	mu   sync.Mutex
	jobs []engine.DeliveryJob
}

func (r *recordingSink) Submit(job engine.DeliveryJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
}

func (r *recordingSink) TrySubmit(job engine.DeliveryJob) bool {
	r.Submit(job)
	return true
}

func (r *recordingSink) all() []engine.DeliveryJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engine.DeliveryJob(nil), r.jobs...)
}

func pendingAttempt(id, subID string, retryCount int) domain.DeliveryAttempt {
	past := time.Now().Add(-time.Minute)
	return domain.DeliveryAttempt{
		ID:             id,
		SubscriptionID: subID,
		TenantID:       "t1",
		EventType:      domain.EventBookingCreated,
		ResourceID:     "room-1",
		Payload:        json.RawMessage(`{"eventType":"booking.created"}`),
		Success:        false,
		RetryCount:     retryCount,
		NextRetryAt:    &past,
	}
}

func enabledSub(id string) *domain.Subscription {
	return &domain.Subscription{
		ID:                id,
		TenantID:          "t1",
		TargetURL:         "http://example.com/hook",
		Enabled:           true,
		SecretHash:        "key-digest",
		EventType:         domain.EventTypeWildcard,
		MaxRetries:        3,
		RetryDelaySeconds: 60,
	}
}

func TestScheduler_RedrivesDueRetry(t *testing.T) {
	retries := newFakeRetrySource(pendingAttempt("att-1", "sub-1", 0))
	subs := &fakeSubLookup{subs: map[string]*domain.Subscription{"sub-1": enabledSub("sub-1")}}
	sink := &recordingSink{}

	s := NewScheduler(retries, subs, sink, time.Second, 50, testLogger())
	s.RunOnce(context.Background())

	jobs := sink.all()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].RetryCount != 1 {
		t.Errorf("retry count should be incremented, got %d", jobs[0].RetryCount)
	}
	if jobs[0].SubscriptionID != "sub-1" {
		t.Errorf("job subscription = %q", jobs[0].SubscriptionID)
	}
	if string(jobs[0].Payload) != `{"eventType":"booking.created"}` {
		t.Errorf("retry must resend the original payload, got %s", jobs[0].Payload)
	}
}

func TestScheduler_ClaimPreventsDoubleSend(t *testing.T) {
	retries := newFakeRetrySource(pendingAttempt("att-1", "sub-1", 0))
	subs := &fakeSubLookup{subs: map[string]*domain.Subscription{"sub-1": enabledSub("sub-1")}}
	sink := &recordingSink{}

	s := NewScheduler(retries, subs, sink, time.Second, 50, testLogger())

	// Two scheduler passes racing over the same pending row
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RunOnce(context.Background())
		}()
	}
	wg.Wait()

	if got := len(sink.all()); got != 1 {
		t.Errorf("pending retry re-driven %d times, want exactly 1", got)
	}
}

func TestScheduler_DeletedSubscriptionNeverRetried(t *testing.T) {
	retries := newFakeRetrySource(pendingAttempt("att-1", "sub-gone", 1))
	subs := &fakeSubLookup{subs: map[string]*domain.Subscription{}} // deleted
	sink := &recordingSink{}

	s := NewScheduler(retries, subs, sink, time.Second, 50, testLogger())
	s.RunOnce(context.Background())

	if len(sink.all()) != 0 {
		t.Error("retry for a deleted subscription must not be sent")
	}
}

func TestScheduler_DisabledSubscriptionNeverRetried(t *testing.T) {
	sub := enabledSub("sub-1")
	sub.Enabled = false
	retries := newFakeRetrySource(pendingAttempt("att-1", "sub-1", 1))
	subs := &fakeSubLookup{subs: map[string]*domain.Subscription{"sub-1": sub}}
	sink := &recordingSink{}

	s := NewScheduler(retries, subs, sink, time.Second, 50, testLogger())
	s.RunOnce(context.Background())

	if len(sink.all()) != 0 {
		t.Error("retry for a disabled subscription must not be sent")
	}
}

// flakyLookup fails a set number of lookups before healing.
type flakyLookup struct {
	failures int
	subs     map[string]*domain.Subscription
}

func (f *flakyLookup) GetSubscriptionByID(_ context.Context, id string) (*domain.Subscription, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection reset")
	}
	return f.subs[id], nil
}

func TestScheduler_LookupErrorLeavesRetryPending(t *testing.T) {
	retries := newFakeRetrySource(pendingAttempt("att-1", "sub-1", 0))
	subs := &flakyLookup{failures: 1, subs: map[string]*domain.Subscription{"sub-1": enabledSub("sub-1")}}
	sink := &recordingSink{}

	s := NewScheduler(retries, subs, sink, time.Second, 50, testLogger())

	s.RunOnce(context.Background())
	if len(sink.all()) != 0 {
		t.Fatal("no job should be sent while the subscription lookup fails")
	}
	if retries.claimed["att-1"] {
		t.Fatal("row must stay unclaimed after a transient lookup failure")
	}

	// Next pass should pick the row back up once the store recovers.
	s.RunOnce(context.Background())
	if got := len(sink.all()); got != 1 {
		t.Errorf("retry lost after transient lookup error, got %d jobs", got)
	}
}

func TestScheduler_LoweredMaxRetriesSkipsExcessRetry(t *testing.T) {
	sub := enabledSub("sub-1")
	sub.MaxRetries = 1
	// Scheduled back when the subscription allowed more retries; the next
	// send would be attempt number 2.
	retries := newFakeRetrySource(pendingAttempt("att-1", "sub-1", 1))
	subs := &fakeSubLookup{subs: map[string]*domain.Subscription{"sub-1": sub}}
	sink := &recordingSink{}

	s := NewScheduler(retries, subs, sink, time.Second, 50, testLogger())
	s.RunOnce(context.Background())

	if len(sink.all()) != 0 {
		t.Error("retry beyond the subscription's current max must not be sent")
	}
}

func TestScheduler_StartReturnsOnCancel(t *testing.T) {
	retries := newFakeRetrySource()
	subs := &fakeSubLookup{subs: map[string]*domain.Subscription{}}
	sink := &recordingSink{}

	s := NewScheduler(retries, subs, sink, 10*time.Millisecond, 50, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler loop did not exit after cancellation")
	}
}

func TestScheduler_BatchLimitRespected(t *testing.T) {
	var due []domain.DeliveryAttempt
	subs := map[string]*domain.Subscription{}
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		due = append(due, pendingAttempt("att-"+id, "sub-"+id, 0))
		subs["sub-"+id] = enabledSub("sub-" + id)
	}

	retries := newFakeRetrySource(due...)
	sink := &recordingSink{}
	s := NewScheduler(retries, &fakeSubLookup{subs: subs}, sink, time.Second, 2, testLogger())

	s.RunOnce(context.Background())
	if got := len(sink.all()); got != 2 {
		t.Errorf("batch of 2 expected, got %d", got)
	}
}
