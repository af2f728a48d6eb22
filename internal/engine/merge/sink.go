package merge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// State is the sink lifecycle state.
type State int32

const (
	// StateWaiting means the sink is blocked on the channel.
	StateWaiting State = iota

	// StateProcessing means the sink is applying a received result.
	StateProcessing

	// StateTerminated means the sink received the sentinel and stopped.
	StateTerminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateProcessing:
		return "processing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ErrNilPolicy is returned when a sink is run without a policy.
var ErrNilPolicy = errors.New("merge policy cannot be nil")

// SinkStats reports what the sink has seen.
type SinkStats struct {
	Received int
	Applied  int
	Failed   int
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithOrdered makes the sink apply results in dispatch sequence order.
func WithOrdered() SinkOption {
	return func(s *Sink) {
		s.reorder = newReorderBuffer()
	}
}

// WithOnApplied registers a hook called, on the sink goroutine, for every
// result after it has been applied or recorded as a failure.
func WithOnApplied(hook func(Result)) SinkOption {
	return func(s *Sink) {
		s.onApplied = hook
	}
}

// WithSinkLogger sets the sink logger.
func WithSinkLogger(logger zerolog.Logger) SinkOption {
	return func(s *Sink) {
		s.logger = logger
	}
}

// Sink is the single consumer of a result channel.
type Sink struct {
	ch        *Channel
	policy    Policy
	reorder   *reorderBuffer
	onApplied func(Result)
	logger    zerolog.Logger

	state    atomic.Int32
	stats    SinkStats
	failures *multierror.Error
}

// NewSink creates a sink draining ch into policy.
func NewSink(ch *Channel, policy Policy, opts ...SinkOption) *Sink {
	s := &Sink{
		ch:     ch,
		policy: policy,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run receives until the shutdown sentinel arrives and returns after flushing
// the policy. A policy error other than ErrUnexpectedKind, or ctx ending,
// terminates the sink early; the channel is closed on return either way so
// producers stop blocking.
func (s *Sink) Run(ctx context.Context) error {
	defer s.ch.Close()
	defer s.state.Store(int32(StateTerminated))

	if s.policy == nil {
		return ErrNilPolicy
	}

	for {
		var msg Message
		select {
		case msg = <-s.ch.messages:
		case <-ctx.Done():
			return ctx.Err()
		}

		if msg.IsShutdown() {
			return s.finish()
		}

		s.state.Store(int32(StateProcessing))
		s.stats.Received++
		if err := s.handle(msg.Result); err != nil {
			return err
		}
		s.state.Store(int32(StateWaiting))
	}
}

// handle routes a received result through the reorder buffer when ordered.
func (s *Sink) handle(r Result) error {
	if s.reorder == nil {
		return s.apply(r)
	}
	for _, ready := range s.reorder.push(r) {
		if err := s.apply(ready); err != nil {
			return err
		}
	}
	return nil
}

// apply hands one result to the policy or records it as a failure.
func (s *Sink) apply(r Result) error {
	if r.IsFailure() {
		s.recordFailure(r.Err)
	} else if err := s.policy.Apply(r); err != nil {
		if !errors.Is(err, ErrUnexpectedKind) {
			return fmt.Errorf("applying batch %d: %w", r.Seq, err)
		}
		s.recordFailure(fmt.Errorf("batch %d: %w", r.Seq, err))
	} else {
		s.stats.Applied++
	}

	if s.onApplied != nil {
		s.onApplied(r)
	}
	return nil
}

func (s *Sink) recordFailure(err error) {
	if err == nil {
		err = errors.New("batch failed without an error")
	}
	s.stats.Failed++
	s.failures = multierror.Append(s.failures, err)
	s.logger.Warn().Err(err).Msg("batch failed")
}

// finish flushes anything left in the reorder buffer and the policy.
func (s *Sink) finish() error {
	if s.reorder != nil && s.reorder.size() > 0 {
		s.logger.Warn().Int("pending", s.reorder.size()).Msg("flushing out-of-sequence results at shutdown")
		for _, r := range s.reorder.drain() {
			if err := s.apply(r); err != nil {
				return err
			}
		}
	}
	return s.policy.Flush()
}

// State returns the current lifecycle state. Safe for concurrent use.
func (s *Sink) State() State {
	return State(s.state.Load())
}

// Stats returns the sink counters. Read only after Run returned.
func (s *Sink) Stats() SinkStats {
	return s.stats
}

// Err returns the collected batch failures, or nil. Read only after Run returned.
func (s *Sink) Err() error {
	return s.failures.ErrorOrNil()
}
