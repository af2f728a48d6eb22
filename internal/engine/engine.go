// Package engine wires the line batcher, worker pool and merge sink into a
// fork-join pipeline.
//
// A run reads the input on the calling goroutine, submits one job per batch
// to a fixed worker pool, and merges results on a single sink goroutine.
// Shutdown is strictly ordered: the pool is drained and joined first, then
// the sink receives its shutdown sentinel, and only after the sink goroutine
// has been joined is the policy's accumulator safe to read.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/rshade/corpusfork/internal/engine/batch"
	"github.com/rshade/corpusfork/internal/engine/merge"
	"github.com/rshade/corpusfork/internal/engine/pool"
	"github.com/rshade/corpusfork/internal/metrics"
)

// Common engine errors.
var (
	ErrNilWorkFunc   = errors.New("work function cannot be nil")
	ErrNilPolicy     = errors.New("merge policy cannot be nil")
	ErrBatchFailed   = errors.New("batch failed")
	ErrWorkPanic     = errors.New("work function panicked")
	ErrInvalidConfig = errors.New("invalid engine configuration")
)

// WorkFunc transforms one batch into one result. It must not mutate pipeline
// state; it may read immutable values captured at construction.
type WorkFunc func(b batch.Batch) (merge.Result, error)

// Config holds the pipeline sizing.
type Config struct {
	// Workers is the fixed worker count.
	Workers int

	// QueueCapacity is the job queue capacity; 0 selects 2 x Workers.
	QueueCapacity int

	// BatchSize is the number of lines per batch.
	BatchSize int

	// ChannelCapacity is the result channel capacity.
	ChannelCapacity int

	// Ordered applies results in input order instead of arrival order.
	Ordered bool

	// IdleTimeout is the worker liveness timeout.
	IdleTimeout time.Duration
}

// DefaultConfig returns the default pipeline sizing.
func DefaultConfig() Config {
	return Config{
		Workers:         runtime.NumCPU(),
		BatchSize:       batch.DefaultBatchSize,
		ChannelCapacity: merge.DefaultChannelCapacity,
		IdleTimeout:     pool.DefaultIdleTimeout,
	}
}

// Validate checks the sizing values.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be > 0, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("%w: queue capacity must be >= 0, got %d", ErrInvalidConfig, c.QueueCapacity)
	}
	if c.BatchSize < batch.MinBatchSize || c.BatchSize > batch.MaxBatchSize {
		return fmt.Errorf("%w: %w: got %d", ErrInvalidConfig, batch.ErrInvalidBatchSize, c.BatchSize)
	}
	if c.ChannelCapacity <= 0 {
		return fmt.Errorf("%w: channel capacity must be > 0, got %d", ErrInvalidConfig, c.ChannelCapacity)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("%w: idle timeout must be >= 0, got %s", ErrInvalidConfig, c.IdleTimeout)
	}
	return nil
}

// queueCapacity resolves the effective job queue capacity.
func (c Config) queueCapacity() int {
	if c.QueueCapacity > 0 {
		return c.QueueCapacity
	}
	return c.Workers * pool.DefaultQueueFactor
}

// window is the maximum number of batches resident between dispatch and merge.
func (c Config) window() int {
	return c.queueCapacity() + c.Workers + c.ChannelCapacity
}

// Summary describes a finished run.
type Summary struct {
	Lines        int
	SkippedLines int
	Batches      int
	Merged       int
	Failed       int
	Panicked     int
	Workers      int
	BatchSize    int
	Ordered      bool
	Elapsed      time.Duration
}

// LinesPerSecond returns the overall throughput.
func (s *Summary) LinesPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Lines) / s.Elapsed.Seconds()
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger; each pipeline stage logs through a sub-logger tagged with its stage.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics records pipeline metrics into m.
func WithMetrics(m *metrics.Pipeline) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithProgress shares a progress tracker with the caller.
func WithProgress(p *batch.Progress) Option {
	return func(e *Engine) {
		e.progress = p
	}
}

// Engine runs the fork-join pipeline.
type Engine struct {
	cfg      Config
	logger   zerolog.Logger
	metrics  *metrics.Pipeline
	progress *batch.Progress
}

// New creates an engine after validating cfg.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:    cfg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.progress == nil {
		e.progress = batch.NewProgress(cfg.BatchSize)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run processes r through work and merges the results with policy.
//
// The summary is returned even on error. Batch failures do not stop the run:
// every successful result is still merged, and the failures are returned
// together as a *multierror.Error whose entries wrap ErrBatchFailed.
func (e *Engine) Run(ctx context.Context, r io.Reader, work WorkFunc, policy merge.Policy) (*Summary, error) {
	if work == nil {
		return nil, ErrNilWorkFunc
	}
	if policy == nil {
		return nil, ErrNilPolicy
	}

	start := time.Now()
	e.progress.Reset()
	log := e.logger

	g, gCtx := errgroup.WithContext(ctx)

	// Panics inside the work function are recovered by execute; the pool
	// handler only sees panics from the job wrapper itself.
	var panics atomic.Int64
	wp, err := pool.New(e.cfg.Workers,
		pool.WithQueueCapacity(e.cfg.queueCapacity()),
		pool.WithIdleTimeout(e.cfg.IdleTimeout),
		pool.WithContext(gCtx),
		pool.WithLogger(log.With().Str("stage", "pool").Logger()),
		pool.WithPanicHandler(func(any) {
			panics.Add(1)
			e.metrics.ObservePanic()
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	// In ordered mode the reorder buffer does not block workers, so the
	// number of resident batches is bounded here instead.
	var window *semaphore.Weighted
	ch := merge.NewChannel(e.cfg.ChannelCapacity)
	sinkOpts := []merge.SinkOption{
		merge.WithSinkLogger(log.With().Str("stage", "sink").Logger()),
		merge.WithOnApplied(func(res merge.Result) {
			if res.IsFailure() {
				e.progress.AddFailed()
			} else {
				e.progress.AddCompleted()
			}
			e.metrics.ObserveMerged(res.IsFailure())
			if window != nil {
				window.Release(1)
			}
		}),
	}
	if e.cfg.Ordered {
		window = semaphore.NewWeighted(int64(e.cfg.window()))
		sinkOpts = append(sinkOpts, merge.WithOrdered())
	}
	sink := merge.NewSink(ch, policy, sinkOpts...)

	g.Go(func() error {
		return sink.Run(gCtx)
	})

	batcher, err := batch.NewLineBatcher(e.cfg.BatchSize,
		batch.WithLogger(log.With().Str("stage", "batcher").Logger()),
		batch.WithProgress(e.progress),
	)
	if err != nil {
		// Unreachable after Validate, but the sink goroutine must still be released.
		wp.DrainAndJoin()
		_ = ch.Shutdown(gCtx)
		_ = g.Wait()
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	log.Info().
		Int("workers", e.cfg.Workers).
		Int("batch_size", batcher.GetBatchSize()).
		Int("queue_capacity", wp.QueueCapacity()).
		Int("channel_capacity", ch.Capacity()).
		Bool("ordered", e.cfg.Ordered).
		Msg("pipeline started")

	stats, batchErr := batcher.Run(gCtx, r, func(ctx context.Context, b batch.Batch) error {
		if window != nil {
			if acquireErr := window.Acquire(ctx, 1); acquireErr != nil {
				return acquireErr
			}
		}
		if submitErr := wp.Submit(ctx, e.job(gCtx, ch, work, b, &panics)); submitErr != nil {
			if window != nil {
				window.Release(1)
			}
			return submitErr
		}
		e.metrics.ObserveDispatched()
		log.Trace().Uint64("seq", b.Seq).Int("queued", wp.QueueSize()).Msg("batch submitted")
		return nil
	})
	e.metrics.ObserveLines(stats.Lines, stats.SkippedLines)

	// Every submitted job has sent its result once the pool is joined, so the
	// sentinel is guaranteed to be the last message the sink sees.
	wp.DrainAndJoin()
	if shutdownErr := ch.Shutdown(gCtx); shutdownErr != nil {
		log.Debug().Err(shutdownErr).Msg("sink already gone at shutdown")
	}
	sinkErr := g.Wait()

	sinkStats := sink.Stats()
	summary := &Summary{
		Lines:        stats.Lines,
		SkippedLines: stats.SkippedLines,
		Batches:      stats.Batches,
		Merged:       sinkStats.Applied,
		Failed:       sinkStats.Failed,
		Panicked:     int(panics.Load()),
		Workers:      e.cfg.Workers,
		BatchSize:    e.cfg.BatchSize,
		Ordered:      e.cfg.Ordered,
		Elapsed:      time.Since(start),
	}

	var result *multierror.Error
	if batchErr != nil {
		result = multierror.Append(result, fmt.Errorf("reading input: %w", batchErr))
	}
	if sinkErr != nil {
		result = multierror.Append(result, fmt.Errorf("merging results: %w", sinkErr))
	}
	if failures := sink.Err(); failures != nil {
		result = multierror.Append(result, failures)
	}

	event := log.Info()
	if result != nil {
		event = log.Warn().Int("errors", result.Len())
	}
	event.
		Int("lines", summary.Lines).
		Int("skipped_lines", summary.SkippedLines).
		Int("batches", summary.Batches).
		Int("merged", summary.Merged).
		Int("failed", summary.Failed).
		Int("panicked", summary.Panicked).
		Dur("elapsed", summary.Elapsed).
		Msg("pipeline finished")

	return summary, result.ErrorOrNil()
}

// job binds one batch to the work function and the result channel.
// Recovered work-function panics are counted in panics.
func (e *Engine) job(ctx context.Context, ch *merge.Channel, work WorkFunc, b batch.Batch, panics *atomic.Int64) pool.Job {
	return func() {
		started := time.Now()
		res := execute(work, b)
		e.metrics.ObserveWork(time.Since(started))
		if res.IsFailure() && errors.Is(res.Err, ErrWorkPanic) {
			panics.Add(1)
			e.metrics.ObservePanic()
		}

		if err := ch.Send(ctx, res); err != nil {
			e.logger.Debug().Err(err).Uint64("seq", b.Seq).Msg("discarding result")
			e.metrics.ObserveDiscarded()
		}
	}
}

// execute runs work inside a failure boundary. It always returns exactly one
// result carrying the batch sequence number.
func execute(work WorkFunc, b batch.Batch) (res merge.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = merge.FailureResult(b.Seq, fmt.Errorf("%w: batch %d: %w: %v", ErrBatchFailed, b.Seq, ErrWorkPanic, r))
		}
	}()

	res, err := work(b)
	if err != nil {
		return merge.FailureResult(b.Seq, fmt.Errorf("%w: batch %d: %w", ErrBatchFailed, b.Seq, err))
	}
	if res.IsFailure() {
		cause := res.Err
		if cause == nil {
			cause = errors.New("work function reported failure")
		}
		return merge.FailureResult(b.Seq, fmt.Errorf("%w: batch %d: %w", ErrBatchFailed, b.Seq, cause))
	}
	res.Seq = b.Seq
	return res
}
