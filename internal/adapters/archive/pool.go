package archive

import (
	"context"

	"github.com/chattyhq/export-service/internal/ports"
)

type buildJob struct {
	ctx     context.Context
	ownerID string
	done    chan buildResult
}

type buildResult struct {
	res ports.ArchiveResult
	err error
}

// Pool runs archive builds on a fixed set of workers so compression, the only
// CPU/IO-heavy operation in the service, never head-of-line blocks concurrent
// verification or status calls.
type Pool struct {
	inner ports.ArchiveBuilder
	jobs  chan buildJob
}

// NewPool starts the worker goroutines. They live for the process lifetime;
// the bounded queue applies backpressure when every worker is busy.
func NewPool(inner ports.ArchiveBuilder, workers int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	p := &Pool{
		inner: inner,
		jobs:  make(chan buildJob, workers*2),
	}
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	for job := range p.jobs {
		if err := job.ctx.Err(); err != nil {
			job.done <- buildResult{err: err}
			continue
		}
		res, err := p.inner.Build(job.ctx, job.ownerID)
		job.done <- buildResult{res: res, err: err}
	}
}

// Build submits a job and waits for its result or context cancellation.
func (p *Pool) Build(ctx context.Context, ownerID string) (ports.ArchiveResult, error) {
	job := buildJob{ctx: ctx, ownerID: ownerID, done: make(chan buildResult, 1)}

	select {
	case p.jobs <- job:
	case <-ctx.Done():
		return ports.ArchiveResult{}, ctx.Err()
	}

	select {
	case out := <-job.done:
		return out.res, out.err
	case <-ctx.Done():
		return ports.ArchiveResult{}, ctx.Err()
	}
}
