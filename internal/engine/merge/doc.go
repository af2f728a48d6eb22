// Package merge implements the result channel and the single-consumer merge sink.
//
// Workers send one Result per batch on a bounded Channel. A single Sink
// goroutine drains the channel and applies a Policy: EmitPolicy streams lines
// to a writer, ReducePolicy folds partial word counts into one map owned by
// the sink goroutine.
//
// The channel capacity is the primary backpressure control. When the sink
// falls behind, sends block, which blocks workers, which fills the job queue
// and finally blocks the producer.
//
// By default results are applied in arrival order, so only the order of lines
// within a batch is preserved. A sink created WithOrdered holds a reorder
// buffer keyed by batch sequence number and applies results strictly in
// dispatch order.
package merge
