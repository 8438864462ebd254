// Package worker runs background verification jobs, rate-limits outbound
// requests per host, and fans batches of documents out.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aonanj/citation-verifier/internal/model"
)

// Job is one unit of background verification
type Job interface {
	// Key identifies the entry the result belongs to
	Key() string
	Execute(ctx context.Context) (model.Result, error)
}

// JobFunc adapts a function to Job
type JobFunc struct {
	ID string
	Fn func(ctx context.Context) (model.Result, error)
}

// Key returns the job's entry key
func (j JobFunc) Key() string {
	return j.ID
}

// Execute runs the function
func (j JobFunc) Execute(ctx context.Context) (model.Result, error) {
	return j.Fn(ctx)
}

// Outcome is what a job produced. Jobs never write shared state; the
// submitter merges outcomes after Wait.
type Outcome struct {
	Key    string
	Result model.Result
	Err    error
}

// Pool runs jobs on a fixed number of workers. Every submitted job yields
// exactly one Outcome, including jobs that were cancelled before running.
type Pool struct {
	workers  int
	jobQueue chan Job
	logger   *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	startOnce  sync.Once
	closeOnce  sync.Once

	submitMu sync.RWMutex
	closed   bool

	mu       sync.Mutex
	outcomes []Outcome
}

// Option configures a Pool
type Option func(*Pool)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool creates a pool whose jobs run under ctx
func NewPool(ctx context.Context, workers int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		logger:     slog.Default(),
		ctx:        ctx,
		cancelFunc: cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobQueue {
		p.record(p.run(job))
	}
}

func (p *Pool) run(job Job) (out Outcome) {
	out.Key = job.Key()
	if err := p.ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked", slog.String("key", out.Key), slog.Any("panic", r))
			out.Err = fmt.Errorf("job %s panicked: %v", out.Key, r)
		}
	}()

	out.Result, out.Err = job.Execute(p.ctx)
	return out
}

func (p *Pool) record(o Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes = append(p.outcomes, o)
}

// Submit queues a job. After Wait or Shutdown the job is not run and its
// outcome carries an error.
func (p *Pool) Submit(job Job) {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()
	if p.closed {
		p.record(Outcome{Key: job.Key(), Err: fmt.Errorf("pool closed")})
		return
	}

	select {
	case <-p.ctx.Done():
		p.record(Outcome{Key: job.Key(), Err: p.ctx.Err()})
	case p.jobQueue <- job:
	}
}

// Wait is the join-all barrier: it stops accepting jobs, waits for every
// queued job, and returns all outcomes.
func (p *Pool) Wait() []Outcome {
	p.Start()
	p.closeQueue()
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	outcomes := make([]Outcome, len(p.outcomes))
	copy(outcomes, p.outcomes)
	return outcomes
}

// Shutdown cancels running jobs and waits for the workers to exit. Jobs
// still queued report the cancellation.
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.Wait()
}

func (p *Pool) closeQueue() {
	p.closeOnce.Do(func() {
		p.submitMu.Lock()
		p.closed = true
		close(p.jobQueue)
		p.submitMu.Unlock()
	})
}
