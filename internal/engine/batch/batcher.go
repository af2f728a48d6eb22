package batch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Default line batching configuration.
const (
	// DefaultBatchSize is the default number of lines per batch.
	DefaultBatchSize = 10_000

	// MinBatchSize is the minimum allowed batch size.
	MinBatchSize = 1

	// MaxBatchSize is the maximum allowed batch size.
	MaxBatchSize = 1_000_000

	// readBufferSize is the size of the buffered reader wrapped around the input.
	readBufferSize = 64 * 1024
)

// Common batching errors.
var (
	ErrInvalidBatchSize = errors.New("batch size must be between 1 and 1000000")
	ErrNilDispatch      = errors.New("dispatch function cannot be nil")
	ErrNilReader        = errors.New("input reader cannot be nil")
)

// Batch is an ordered group of input lines processed as one unit of work.
type Batch struct {
	// Seq is the dispatch sequence number, starting at 0.
	Seq uint64

	// Lines holds the raw lines without their line terminators.
	Lines []string
}

// Len returns the number of lines in the batch.
func (b Batch) Len() int {
	return len(b.Lines)
}

// DispatchFunc hands a full batch to the next stage. It may block; a returned
// error stops batching.
type DispatchFunc func(ctx context.Context, b Batch) error

// Stats summarizes a completed LineBatcher run.
type Stats struct {
	Lines        int
	SkippedLines int
	Batches      int
}

// Option configures a LineBatcher.
type Option func(*LineBatcher)

// WithLogger sets the logger used for skipped-line diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *LineBatcher) {
		b.logger = logger
	}
}

// WithProgress attaches a progress tracker that is updated as lines are read
// and batches are dispatched.
func WithProgress(progress *Progress) Option {
	return func(b *LineBatcher) {
		b.progress = progress
	}
}

// LineBatcher reads lines and groups them into fixed-capacity batches.
type LineBatcher struct {
	batchSize int
	logger    zerolog.Logger
	progress  *Progress
}

// NewLineBatcher creates a new line batcher with the given batch size.
func NewLineBatcher(batchSize int, opts ...Option) (*LineBatcher, error) {
	if batchSize < MinBatchSize || batchSize > MaxBatchSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}

	b := &LineBatcher{
		batchSize: batchSize,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// GetBatchSize returns the configured batch size.
func (b *LineBatcher) GetBatchSize() int {
	return b.batchSize
}

// Run reads r to the end and dispatches every full batch plus the final,
// non-empty partial batch. Lines may be terminated by LF or CRLF; the last
// line does not need a terminator.
//
// Reading stops on the first dispatch error, on context cancellation, or on a
// read error other than io.EOF. The returned Stats are valid in every case.
func (b *LineBatcher) Run(ctx context.Context, r io.Reader, dispatch DispatchFunc) (Stats, error) {
	var stats Stats

	if r == nil {
		return stats, ErrNilReader
	}
	if dispatch == nil {
		return stats, ErrNilDispatch
	}

	reader := bufio.NewReaderSize(r, readBufferSize)
	var seq uint64
	lines := make([]string, 0, b.batchSize)

	flush := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		current := Batch{Seq: seq, Lines: lines}
		if err := dispatch(ctx, current); err != nil {
			return fmt.Errorf("dispatching batch %d: %w", seq, err)
		}
		stats.Batches++
		if b.progress != nil {
			b.progress.AddDispatched()
		}
		seq++
		lines = make([]string, 0, b.batchSize)
		return nil
	}

	for {
		raw, readErr := reader.ReadString('\n')
		if len(raw) > 0 {
			line := trimLineEnding(raw)
			if utf8.ValidString(line) {
				lines = append(lines, line)
				stats.Lines++
				if b.progress != nil {
					b.progress.AddLines(1)
				}
			} else {
				stats.SkippedLines++
				if b.progress != nil {
					b.progress.AddSkipped(1)
				}
				b.logger.Debug().
					Int("line_number", stats.Lines+stats.SkippedLines).
					Msg("skipping line with invalid UTF-8")
			}

			if len(lines) == b.batchSize {
				if err := flush(); err != nil {
					return stats, err
				}
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return stats, fmt.Errorf("reading input: %w", readErr)
		}
	}

	if len(lines) > 0 {
		if err := flush(); err != nil {
			return stats, err
		}
	}

	if b.progress != nil {
		b.progress.MarkInputDone()
	}
	return stats, nil
}

// trimLineEnding strips a trailing "\n" or "\r\n".
func trimLineEnding(raw string) string {
	line := strings.TrimSuffix(raw, "\n")
	return strings.TrimSuffix(line, "\r")
}
