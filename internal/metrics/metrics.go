// Package metrics exposes Prometheus collectors for the batch pipeline.
//
// All recording methods are safe to call on a nil *Pipeline, so callers that
// run without metrics do not need to branch.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricPrefix is prepended to every metric name.
const MetricPrefix = "corpusfork_"

const shutdownTimeout = 5 * time.Second

// Pipeline holds the collectors updated by one pipeline run.
type Pipeline struct {
	LinesRead         prometheus.Counter
	LinesSkipped      prometheus.Counter
	BatchesDispatched prometheus.Counter
	BatchesMerged     prometheus.Counter
	BatchFailures     prometheus.Counter
	ResultsDiscarded  prometheus.Counter
	WorkPanics        prometheus.Counter
	InFlightBatches   prometheus.Gauge
	BatchDuration     prometheus.Histogram
}

// New creates the pipeline collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Pipeline, error) {
	p := &Pipeline{
		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPrefix + "lines_read_total",
			Help: "Total number of input lines accepted into batches",
		}),
		LinesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPrefix + "lines_skipped_total",
			Help: "Total number of input lines skipped because they could not be decoded",
		}),
		BatchesDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPrefix + "batches_dispatched_total",
			Help: "Total number of batches submitted to the worker pool",
		}),
		BatchesMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPrefix + "batches_merged_total",
			Help: "Total number of batch results applied by the merge sink",
		}),
		BatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPrefix + "batch_failures_total",
			Help: "Total number of batches that ended in a failure result",
		}),
		ResultsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPrefix + "results_discarded_total",
			Help: "Total number of results dropped because the merge sink was gone",
		}),
		WorkPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPrefix + "work_panics_total",
			Help: "Total number of panics recovered from work functions and jobs",
		}),
		InFlightBatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricPrefix + "batches_in_flight",
			Help: "Number of dispatched batches whose results have not been merged",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricPrefix + "batch_duration_seconds",
			Help:    "Time spent in the work function per batch",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg == nil {
		return p, nil
	}
	for _, c := range p.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering pipeline metrics: %w", err)
		}
	}
	return p, nil
}

func (p *Pipeline) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		p.LinesRead, p.LinesSkipped, p.BatchesDispatched, p.BatchesMerged,
		p.BatchFailures, p.ResultsDiscarded, p.WorkPanics, p.InFlightBatches, p.BatchDuration,
	}
}

// ObserveLines records accepted and skipped input lines.
func (p *Pipeline) ObserveLines(read, skipped int) {
	if p == nil {
		return
	}
	p.LinesRead.Add(float64(read))
	p.LinesSkipped.Add(float64(skipped))
}

// ObserveDispatched records a batch handed to the pool.
func (p *Pipeline) ObserveDispatched() {
	if p == nil {
		return
	}
	p.BatchesDispatched.Inc()
	p.InFlightBatches.Inc()
}

// ObserveWork records the duration of one work function call.
func (p *Pipeline) ObserveWork(d time.Duration) {
	if p == nil {
		return
	}
	p.BatchDuration.Observe(d.Seconds())
}

// ObserveMerged records a result leaving the merge sink.
func (p *Pipeline) ObserveMerged(failed bool) {
	if p == nil {
		return
	}
	p.InFlightBatches.Dec()
	if failed {
		p.BatchFailures.Inc()
		return
	}
	p.BatchesMerged.Inc()
}

// ObservePanic records a recovered panic.
func (p *Pipeline) ObservePanic() {
	if p == nil {
		return
	}
	p.WorkPanics.Inc()
}

// ObserveDiscarded records a result that could not be delivered.
func (p *Pipeline) ObserveDiscarded() {
	if p == nil {
		return
	}
	p.ResultsDiscarded.Inc()
	p.InFlightBatches.Dec()
}

// Serve exposes gatherer on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving metrics: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down metrics server: %w", err)
		}
		return nil
	}
}
