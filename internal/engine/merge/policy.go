package merge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// ErrUnexpectedKind is returned by a policy handed a result variant it does not consume.
var ErrUnexpectedKind = errors.New("unexpected result kind")

// Policy is applied by the sink goroutine to every non-failure result.
// Implementations are only ever called from that one goroutine.
type Policy interface {
	Apply(r Result) error
	Flush() error
}

// EmitPolicy writes every line of every KindLines result to a writer, one per line.
type EmitPolicy struct {
	w     *bufio.Writer
	lines int
}

// NewEmitPolicy creates an emission policy writing to w.
func NewEmitPolicy(w io.Writer) *EmitPolicy {
	return &EmitPolicy{w: bufio.NewWriter(w)}
}

// Apply writes the lines of r in order.
func (p *EmitPolicy) Apply(r Result) error {
	if r.Kind != KindLines {
		return fmt.Errorf("%w: emit policy got %s", ErrUnexpectedKind, r.Kind)
	}
	for _, line := range r.Lines {
		if _, err := p.w.WriteString(line); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		if err := p.w.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		p.lines++
	}
	return nil
}

// Flush flushes buffered output.
func (p *EmitPolicy) Flush() error {
	if err := p.w.Flush(); err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}
	return nil
}

// LinesWritten returns the number of lines written so far.
func (p *EmitPolicy) LinesWritten() int {
	return p.lines
}

// ReducePolicy folds partial counts into a single accumulator.
// The accumulator is owned by the sink goroutine; read it only after Sink.Run returned.
type ReducePolicy struct {
	counts map[string]int
}

// NewReducePolicy creates an empty reduction policy.
func NewReducePolicy() *ReducePolicy {
	return &ReducePolicy{counts: make(map[string]int)}
}

// Apply adds every (key, count) pair of r to the accumulator.
func (p *ReducePolicy) Apply(r Result) error {
	if r.Kind != KindCounts {
		return fmt.Errorf("%w: reduce policy got %s", ErrUnexpectedKind, r.Kind)
	}
	for key, count := range r.Counts {
		p.counts[key] += count
	}
	return nil
}

// Flush is a no-op for the in-memory accumulator.
func (p *ReducePolicy) Flush() error {
	return nil
}

// Counts returns the accumulator.
func (p *ReducePolicy) Counts() map[string]int {
	return p.counts
}
