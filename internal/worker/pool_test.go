package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPool_TrySubmitNeverBlocksWhenSaturated(t *testing.T) {
	// A subscriber that never answers keeps the single worker occupied.
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()

	rec := &fakeRecorder{}
	d := NewDeliverer(rec, nil, nil, 30*time.Second, testLogger())
	p := NewPool(1, d, testLogger())
	p.Start(context.Background())

	// Fill the queue. The worker dequeues at most one job before it blocks
	// on the hung subscriber, so acceptance must stop at the buffer size.
	accepted := 0
	for p.TrySubmit(testJob(server.URL, 0, 3)) {
		accepted++
		if accepted > 10 {
			t.Fatal("TrySubmit kept accepting jobs past any plausible queue bound")
		}
	}
	if accepted == 0 {
		t.Fatal("TrySubmit rejected the first job on an empty queue")
	}

	// Once saturated, further submissions must return immediately.
	start := time.Now()
	if p.TrySubmit(testJob(server.URL, 0, 3)) {
		t.Error("TrySubmit accepted a job on a saturated queue")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("TrySubmit took %v on a saturated queue, expected an immediate return", elapsed)
	}

	close(release)
	p.Stop()
}
