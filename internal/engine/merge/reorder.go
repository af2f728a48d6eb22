package merge

import "sort"

// reorderBuffer releases results strictly in sequence order.
type reorderBuffer struct {
	next    uint64
	pending map[uint64]Result
}

func newReorderBuffer() *reorderBuffer {
	return &reorderBuffer{pending: make(map[uint64]Result)}
}

// push stores r and returns every result that is now releasable, in order.
func (b *reorderBuffer) push(r Result) []Result {
	if r.Seq != b.next {
		b.pending[r.Seq] = r
		return nil
	}

	ready := []Result{r}
	b.next++
	for {
		nextResult, ok := b.pending[b.next]
		if !ok {
			break
		}
		delete(b.pending, b.next)
		ready = append(ready, nextResult)
		b.next++
	}
	return ready
}

// drain returns the remaining results in ascending sequence order and empties the buffer.
func (b *reorderBuffer) drain() []Result {
	if len(b.pending) == 0 {
		return nil
	}
	rest := make([]Result, 0, len(b.pending))
	for _, r := range b.pending {
		rest = append(rest, r)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Seq < rest[j].Seq })
	b.pending = make(map[uint64]Result)
	return rest
}

// size returns the number of buffered results.
func (b *reorderBuffer) size() int {
	return len(b.pending)
}
