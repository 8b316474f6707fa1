package worker

import (
	"context"
	"sync"

	"github.com/baharkarakas/circulation-backend/internal/metrics"
)

type task func()

// Pool runs submitted tasks on a fixed set of goroutines.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan task
	once sync.Once
}

const queueSize = 1024

func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{jobs: make(chan task, queueSize)}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				metrics.WorkerQueueDepth.Dec()
				job()
			}
		}()
	}
	return p
}

// Submit queues f, blocking while the queue is full.
func (p *Pool) Submit(f task) {
	metrics.WorkerQueueDepth.Inc()
	p.jobs <- f
}

// SubmitCtx queues f unless ctx ends first.
func (p *Pool) SubmitCtx(ctx context.Context, f task) error {
	metrics.WorkerQueueDepth.Inc()
	select {
	case p.jobs <- f:
		return nil
	case <-ctx.Done():
		metrics.WorkerQueueDepth.Dec()
		return ctx.Err()
	}
}

// Stop drains the queue and waits for running tasks.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.jobs) })
	p.wg.Wait()
}
