package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bookwise/webhook-service/internal/engine"
)

// Pool manages a fixed number of worker goroutines that process delivery
// jobs. First attempts and scheduled retries both flow through it, so the
// request that raised a domain event never blocks on subscriber I/O.
type Pool struct {
	numWorkers int
	jobs       chan engine.DeliveryJob
	deliverer  *Deliverer
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewPool creates a worker pool with the given number of workers.
func NewPool(numWorkers int, deliverer *Deliverer, logger *slog.Logger) *Pool {
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan engine.DeliveryJob, numWorkers*2),
		deliverer:  deliverer,
		logger:     logger,
	}
}

// Start launches all worker goroutines. They read from the jobs channel
// until it is closed or the context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info("worker pool started", "num_workers", p.numWorkers)
}

// Submit sends a job to the worker pool via the jobs channel, blocking
// until the queue has room. Only background callers use it.
func (p *Pool) Submit(job engine.DeliveryJob) {
	p.jobs <- job
}

// TrySubmit queues the job without ever blocking. It reports false when the
// queue is saturated, so request threads raising domain events never wait on
// subscriber I/O.
func (p *Pool) TrySubmit(job engine.DeliveryJob) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop closes the jobs channel and waits for all workers to finish.
// In-flight deliveries complete and log normally.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// worker is a single goroutine that processes jobs from the channel.
func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for job := range p.jobs {
		select {
		case <-ctx.Done():
			return
		default:
			p.deliverer.Deliver(ctx, job)
		}
	}
}
