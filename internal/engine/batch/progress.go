package batch

import (
	"sync"
	"time"
)

// Progress tracks the progress of a streaming pipeline run.
// Totals are unknown up front, so it reports counts and rates rather than a percentage.
type Progress struct {
	// LinesRead is the number of lines accepted into batches.
	LinesRead int

	// LinesSkipped is the number of lines dropped because they failed to decode.
	LinesSkipped int

	// BatchesDispatched is the number of batches handed to the worker pool.
	BatchesDispatched int

	// BatchesCompleted is the number of batches whose results were merged.
	BatchesCompleted int

	// BatchesFailed is the number of batches that produced a failure result.
	BatchesFailed int

	// BatchSize is the configured batch size.
	BatchSize int

	// StartTime is when processing started.
	StartTime time.Time

	// LastUpdateTime is when progress was last updated.
	LastUpdateTime time.Time

	inputDone bool

	// mu protects concurrent access to progress fields.
	mu sync.RWMutex
}

// NewProgress creates a new progress tracker.
func NewProgress(batchSize int) *Progress {
	now := time.Now()
	return &Progress{
		BatchSize:      batchSize,
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// AddLines records n lines accepted into batches.
func (p *Progress) AddLines(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.LinesRead += n
	p.LastUpdateTime = time.Now()
}

// AddSkipped records n lines skipped by the reader.
func (p *Progress) AddSkipped(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.LinesSkipped += n
	p.LastUpdateTime = time.Now()
}

// AddDispatched records one dispatched batch.
func (p *Progress) AddDispatched() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.BatchesDispatched++
	p.LastUpdateTime = time.Now()
}

// AddCompleted records one successfully merged batch.
func (p *Progress) AddCompleted() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.BatchesCompleted++
	p.LastUpdateTime = time.Now()
}

// AddFailed records one batch that ended in a failure result.
func (p *Progress) AddFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.BatchesFailed++
	p.LastUpdateTime = time.Now()
}

// MarkInputDone records that the reader reached the end of its input.
func (p *Progress) MarkInputDone() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inputDone = true
	p.LastUpdateTime = time.Now()
}

// InFlight returns the number of dispatched batches whose results have not been merged yet.
func (p *Progress) InFlight() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.inFlightUnsafe()
}

// IsComplete returns true once the input is exhausted and every dispatched
// batch has either completed or failed.
func (p *Progress) IsComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.inputDone && p.inFlightUnsafe() == 0
}

// ElapsedTime returns the time elapsed since processing started.
func (p *Progress) ElapsedTime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return time.Since(p.StartTime)
}

// LinesPerSecond returns the read rate in lines per second.
func (p *Progress) LinesPerSecond() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.linesPerSecondUnsafe()
}

// BatchesPerSecond returns the merge rate in batches per second.
func (p *Progress) BatchesPerSecond() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	elapsed := time.Since(p.StartTime).Seconds()
	if elapsed == 0 {
		return 0
	}

	return float64(p.BatchesCompleted+p.BatchesFailed) / elapsed
}

// Snapshot returns a thread-safe copy of the current progress state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProgressSnapshot{
		LinesRead:         p.LinesRead,
		LinesSkipped:      p.LinesSkipped,
		BatchesDispatched: p.BatchesDispatched,
		BatchesCompleted:  p.BatchesCompleted,
		BatchesFailed:     p.BatchesFailed,
		InFlight:          p.inFlightUnsafe(),
		BatchSize:         p.BatchSize,
		StartTime:         p.StartTime,
		LastUpdateTime:    p.LastUpdateTime,
		ElapsedTime:       time.Since(p.StartTime),
		LinesPerSecond:    p.linesPerSecondUnsafe(),
	}
}

// ProgressSnapshot is an immutable snapshot of progress state.
type ProgressSnapshot struct {
	LinesRead         int
	LinesSkipped      int
	BatchesDispatched int
	BatchesCompleted  int
	BatchesFailed     int
	InFlight          int
	BatchSize         int
	StartTime         time.Time
	LastUpdateTime    time.Time
	ElapsedTime       time.Duration
	LinesPerSecond    float64
}

// inFlightUnsafe must be called with the lock held.
func (p *Progress) inFlightUnsafe() int {
	return p.BatchesDispatched - p.BatchesCompleted - p.BatchesFailed
}

// linesPerSecondUnsafe must be called with the lock held.
func (p *Progress) linesPerSecondUnsafe() float64 {
	elapsed := time.Since(p.StartTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(p.LinesRead) / elapsed
}

// Reset resets the progress tracker to initial state.
func (p *Progress) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.LinesRead = 0
	p.LinesSkipped = 0
	p.BatchesDispatched = 0
	p.BatchesCompleted = 0
	p.BatchesFailed = 0
	p.inputDone = false
	p.StartTime = now
	p.LastUpdateTime = now
}
