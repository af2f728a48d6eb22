package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultQueueFactor sizes the job queue as workers * DefaultQueueFactor.
	DefaultQueueFactor = 2

	// DefaultIdleTimeout bounds how long a worker waits on an empty queue
	// before it re-checks whether the pool was abandoned.
	DefaultIdleTimeout = time.Second
)

// Common pool errors.
var (
	ErrInvalidWorkerCount   = errors.New("worker count must be greater than zero")
	ErrInvalidQueueCapacity = errors.New("job queue capacity must be greater than zero")
	ErrNilJob               = errors.New("job cannot be nil")
	ErrPoolClosed           = errors.New("worker pool is draining")
	ErrPoolAbandoned        = errors.New("worker pool was abandoned")
)

// Job is a unit of work executed by a worker.
type Job func()

// PanicHandler receives the value recovered from a panicking job.
type PanicHandler func(recovered any)

type messageKind int

const (
	messageJob messageKind = iota
	messageShutdown
)

// message is the job queue element: either a job or a shutdown request for one worker.
type message struct {
	kind messageKind
	job  Job
}

// Stats reports lifetime job counters.
type Stats struct {
	Submitted uint64
	Completed uint64
	Panicked  uint64
}

// Option configures a Pool.
type Option func(*Pool)

// WithQueueCapacity overrides the default job queue capacity (2 x workers).
func WithQueueCapacity(capacity int) Option {
	return func(p *Pool) {
		p.queueCapacity = capacity
	}
}

// WithIdleTimeout overrides the worker idle timeout.
func WithIdleTimeout(timeout time.Duration) Option {
	return func(p *Pool) {
		if timeout > 0 {
			p.idleTimeout = timeout
		}
	}
}

// WithLogger sets the pool logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithPanicHandler registers a callback for panics recovered from jobs.
func WithPanicHandler(handler PanicHandler) Option {
	return func(p *Pool) {
		p.onPanic = handler
	}
}

// WithContext ties the pool to ctx. When ctx is done the pool counts as
// abandoned: Submit fails and idle workers exit on their next timeout.
func WithContext(ctx context.Context) Option {
	return func(p *Pool) {
		if ctx != nil {
			p.ctx = ctx
		}
	}
}

// Pool is a fixed set of worker goroutines pulling from a shared bounded queue.
type Pool struct {
	numWorkers    int
	queueCapacity int
	idleTimeout   time.Duration
	queue         chan message
	logger        zerolog.Logger
	onPanic       PanicHandler
	ctx           context.Context

	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	drainOnce sync.Once

	submitted atomic.Uint64
	completed atomic.Uint64
	panicked  atomic.Uint64
}

// New creates a pool and starts its workers.
func New(numWorkers int, opts ...Option) (*Pool, error) {
	if numWorkers <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkerCount, numWorkers)
	}

	p := &Pool{
		numWorkers:    numWorkers,
		queueCapacity: numWorkers * DefaultQueueFactor,
		idleTimeout:   DefaultIdleTimeout,
		logger:        zerolog.Nop(),
		ctx:           context.Background(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.queueCapacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQueueCapacity, p.queueCapacity)
	}

	p.queue = make(chan message, p.queueCapacity)
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Debug().
		Int("workers", p.numWorkers).
		Int("queue_capacity", p.queueCapacity).
		Msg("worker pool started")

	return p, nil
}

// worker runs until it receives a shutdown message or finds the pool abandoned.
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	idle := time.NewTimer(p.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case msg := <-p.queue:
			if msg.kind == messageShutdown {
				return
			}
			p.run(id, msg.job)
		case <-idle.C:
			if p.ctx.Err() != nil {
				p.logger.Warn().Int("worker", id).Msg("worker exiting, pool abandoned")
				return
			}
			p.logger.Trace().Int("worker", id).Msg("worker idle")
		}
		idle.Reset(p.idleTimeout)
	}
}

// run executes one job inside a recover boundary.
func (p *Pool) run(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			p.logger.Error().
				Int("worker", id).
				Interface("panic", r).
				Msg("job panicked")
			if p.onPanic != nil {
				p.onPanic(r)
			}
		}
		p.completed.Add(1)
	}()

	job()
}

// Submit enqueues job, blocking while the queue is full.
// It returns ctx.Err() if ctx ends while blocked, ErrPoolClosed once
// DrainAndJoin has started, and ErrPoolAbandoned if the pool context is done.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	if job == nil {
		return ErrNilJob
	}

	// The read lock keeps DrainAndJoin from queuing shutdown messages
	// ahead of a job that is still being enqueued.
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case <-p.ctx.Done():
		return p.abandoned()
	default:
	}

	select {
	case p.queue <- message{kind: messageJob, job: job}:
		p.submitted.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.abandoned()
	}
}

func (p *Pool) abandoned() error {
	return fmt.Errorf("%w: %w", ErrPoolAbandoned, context.Cause(p.ctx))
}

// DrainAndJoin stops accepting jobs, sends one shutdown message per worker and
// waits for all workers to exit. Every job submitted before the call has
// completed when it returns. Safe to call more than once.
func (p *Pool) DrainAndJoin() {
	p.drainOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		for i := 0; i < p.numWorkers; i++ {
			select {
			case p.queue <- message{kind: messageShutdown}:
			case <-p.ctx.Done():
				// Abandoned workers exit on their own.
			}
		}
		p.wg.Wait()

		stats := p.Stats()
		p.logger.Debug().
			Uint64("submitted", stats.Submitted).
			Uint64("completed", stats.Completed).
			Uint64("panicked", stats.Panicked).
			Msg("worker pool drained")
	})
}

// NumWorkers returns the fixed worker count.
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// QueueCapacity returns the job queue capacity.
func (p *Pool) QueueCapacity() int {
	return p.queueCapacity
}

// QueueSize returns the number of messages currently queued.
func (p *Pool) QueueSize() int {
	return len(p.queue)
}

// Stats returns a snapshot of the job counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
}
