package merge

// Kind identifies the variant carried by a Result.
type Kind int

const (
	// KindLines carries emitted lines, in batch order.
	KindLines Kind = iota

	// KindCounts carries partial word counts for one batch.
	KindCounts

	// KindFailure carries the error of a batch that could not be processed.
	KindFailure
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindLines:
		return "lines"
	case KindCounts:
		return "counts"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Result is the outcome of processing one batch.
type Result struct {
	Seq    uint64
	Kind   Kind
	Lines  []string
	Counts map[string]int
	Err    error
}

// LinesResult builds a KindLines result.
func LinesResult(seq uint64, lines []string) Result {
	return Result{Seq: seq, Kind: KindLines, Lines: lines}
}

// CountsResult builds a KindCounts result.
func CountsResult(seq uint64, counts map[string]int) Result {
	return Result{Seq: seq, Kind: KindCounts, Counts: counts}
}

// FailureResult builds a KindFailure result.
func FailureResult(seq uint64, err error) Result {
	return Result{Seq: seq, Kind: KindFailure, Err: err}
}

// IsFailure reports whether the result carries a failure.
func (r Result) IsFailure() bool {
	return r.Kind == KindFailure
}

// Message is the element type of the result channel: a Result or the shutdown sentinel.
type Message struct {
	shutdown bool
	Result   Result
}

// ShutdownMessage returns the sentinel that terminates the sink.
func ShutdownMessage() Message {
	return Message{shutdown: true}
}

// IsShutdown reports whether the message is the shutdown sentinel.
func (m Message) IsShutdown() bool {
	return m.shutdown
}
