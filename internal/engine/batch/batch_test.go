package batch

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect runs the batcher and returns every dispatched batch.
func collect(t *testing.T, b *LineBatcher, input string) ([]Batch, Stats) {
	t.Helper()
	var batches []Batch
	stats, err := b.Run(context.Background(), strings.NewReader(input), func(_ context.Context, bt Batch) error {
		batches = append(batches, bt)
		return nil
	})
	require.NoError(t, err)
	return batches, stats
}

func defaultBatcher(t *testing.T) *LineBatcher {
	t.Helper()
	b, err := NewLineBatcher(DefaultBatchSize)
	require.NoError(t, err)
	return b
}

func makeLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "line-" + strconv.Itoa(i)
	}
	return lines
}

func TestLineBatcher_BatchCount(t *testing.T) {
	tests := []struct {
		name      string
		lines     int
		batchSize int
		want      int
	}{
		{name: "empty input", lines: 0, batchSize: 3, want: 0},
		{name: "single short batch", lines: 2, batchSize: 3, want: 1},
		{name: "exact multiple", lines: 9, batchSize: 3, want: 3},
		{name: "one over", lines: 10, batchSize: 3, want: 4},
		{name: "batch size one", lines: 5, batchSize: 1, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewLineBatcher(tt.batchSize)
			require.NoError(t, err)

			input := ""
			if tt.lines > 0 {
				input = strings.Join(makeLines(tt.lines), "\n") + "\n"
			}

			batches, stats := collect(t, b, input)
			assert.Len(t, batches, tt.want)
			assert.Equal(t, tt.want, stats.Batches)
			assert.Equal(t, tt.lines, stats.Lines)
		})
	}
}

func TestLineBatcher_Reconstruction(t *testing.T) {
	lines := makeLines(1003)
	b, err := NewLineBatcher(100)
	require.NoError(t, err)

	batches, _ := collect(t, b, strings.Join(lines, "\n"))

	var rebuilt []string
	for i, bt := range batches {
		assert.Equal(t, uint64(i), bt.Seq)
		assert.LessOrEqual(t, bt.Len(), 100)
		rebuilt = append(rebuilt, bt.Lines...)
	}
	assert.Equal(t, lines, rebuilt)
}

func TestLineBatcher_SmallScenario(t *testing.T) {
	b, err := NewLineBatcher(2)
	require.NoError(t, err)

	batches, _ := collect(t, b, "x\ny\nz\n")
	require.Len(t, batches, 2)
	assert.Equal(t, []string{"x", "y"}, batches[0].Lines)
	assert.Equal(t, []string{"z"}, batches[1].Lines)
}

func TestLineBatcher_LineEndings(t *testing.T) {
	b := defaultBatcher(t)

	t.Run("CRLF", func(t *testing.T) {
		batches, _ := collect(t, b, "a\r\nb\r\n")
		require.Len(t, batches, 1)
		assert.Equal(t, []string{"a", "b"}, batches[0].Lines)
	})

	t.Run("UnterminatedLastLine", func(t *testing.T) {
		batches, _ := collect(t, b, "a\nb")
		require.Len(t, batches, 1)
		assert.Equal(t, []string{"a", "b"}, batches[0].Lines)
	})

	t.Run("EmptyLinesKept", func(t *testing.T) {
		batches, _ := collect(t, b, "a\n\nb\n")
		require.Len(t, batches, 1)
		assert.Equal(t, []string{"a", "", "b"}, batches[0].Lines)
	})
}

func TestLineBatcher_SkipsInvalidUTF8(t *testing.T) {
	progress := NewProgress(10)
	b, err := NewLineBatcher(10, WithProgress(progress))
	require.NoError(t, err)

	batches, stats := collect(t, b, "good\n\xff\xfe bad\nalso good\n")
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"good", "also good"}, batches[0].Lines)
	assert.Equal(t, 2, stats.Lines)
	assert.Equal(t, 1, stats.SkippedLines)

	snap := progress.Snapshot()
	assert.Equal(t, 2, snap.LinesRead)
	assert.Equal(t, 1, snap.LinesSkipped)
	assert.Equal(t, 1, snap.BatchesDispatched)
}

func TestLineBatcher_LongLine(t *testing.T) {
	long := strings.Repeat("x", 3*readBufferSize)
	b := defaultBatcher(t)

	batches, _ := collect(t, b, long+"\nshort\n")
	require.Len(t, batches, 1)
	assert.Equal(t, []string{long, "short"}, batches[0].Lines)
}

func TestLineBatcher_Errors(t *testing.T) {
	t.Run("InvalidBatchSize", func(t *testing.T) {
		_, err := NewLineBatcher(0)
		require.ErrorIs(t, err, ErrInvalidBatchSize)
		_, err = NewLineBatcher(MaxBatchSize + 1)
		require.ErrorIs(t, err, ErrInvalidBatchSize)
	})

	t.Run("NilDispatch", func(t *testing.T) {
		b := defaultBatcher(t)
		_, err := b.Run(context.Background(), strings.NewReader("a"), nil)
		assert.ErrorIs(t, err, ErrNilDispatch)
	})

	t.Run("NilReader", func(t *testing.T) {
		b := defaultBatcher(t)
		_, err := b.Run(context.Background(), nil, func(context.Context, Batch) error { return nil })
		assert.ErrorIs(t, err, ErrNilReader)
	})

	t.Run("DispatchErrorStops", func(t *testing.T) {
		b, err := NewLineBatcher(1)
		require.NoError(t, err)
		boom := errors.New("boom")
		calls := 0
		stats, err := b.Run(context.Background(), strings.NewReader("a\nb\nc\n"), func(_ context.Context, bt Batch) error {
			calls++
			if bt.Seq == 1 {
				return boom
			}
			return nil
		})
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "dispatching batch 1")
		assert.Equal(t, 2, calls)
		assert.Equal(t, 1, stats.Batches)
	})

	t.Run("ReadError", func(t *testing.T) {
		b := defaultBatcher(t)
		r := io.MultiReader(strings.NewReader("a\n"), iotestErrReader{})
		_, err := b.Run(context.Background(), r, func(context.Context, Batch) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading input")
	})

	t.Run("CancelledContext", func(t *testing.T) {
		b, err := NewLineBatcher(1)
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = b.Run(ctx, strings.NewReader("a\n"), func(context.Context, Batch) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

type iotestErrReader struct{}

func (iotestErrReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestLineBatcher_BatchSize(t *testing.T) {
	b, err := NewLineBatcher(10)
	require.NoError(t, err)
	assert.Equal(t, 10, b.GetBatchSize())
	assert.Equal(t, DefaultBatchSize, defaultBatcher(t).GetBatchSize())
}

func TestProgress(t *testing.T) {
	p := NewProgress(10)
	assert.False(t, p.IsComplete())

	p.AddLines(25)
	p.AddDispatched()
	p.AddDispatched()
	p.AddDispatched()
	assert.Equal(t, 3, p.InFlight())

	p.AddCompleted()
	p.AddFailed()
	p.MarkInputDone()
	assert.Equal(t, 1, p.InFlight())
	assert.False(t, p.IsComplete())

	p.AddCompleted()
	assert.True(t, p.IsComplete())
	time.Sleep(time.Millisecond)
	assert.Greater(t, p.ElapsedTime(), time.Duration(0))
	assert.Greater(t, p.LinesPerSecond(), 0.0)
	assert.Greater(t, p.BatchesPerSecond(), 0.0)

	t.Run("Snapshot", func(t *testing.T) {
		snap := p.Snapshot()
		assert.Equal(t, 25, snap.LinesRead)
		assert.Equal(t, 3, snap.BatchesDispatched)
		assert.Equal(t, 2, snap.BatchesCompleted)
		assert.Equal(t, 1, snap.BatchesFailed)
		assert.Equal(t, 0, snap.InFlight)
		assert.Equal(t, 10, snap.BatchSize)
	})

	t.Run("Reset", func(t *testing.T) {
		p.Reset()
		assert.Equal(t, 0, p.InFlight())
		assert.False(t, p.IsComplete())
		assert.Equal(t, 0, p.Snapshot().LinesRead)
	})
}
