// Package batch slices a line-oriented input stream into fixed-size batches.
//
// The LineBatcher is the producer stage of the pipeline. It reads an input
// stream sequentially and groups lines into batches of a fixed capacity
// (default 10,000 lines per batch). Key properties:
//   - Every accepted line lands in exactly one batch, in input order
//   - Batches carry a monotonically increasing sequence number
//   - Lines that are not valid UTF-8 are skipped and counted
//   - Dispatch is synchronous, so a blocking dispatcher applies backpressure
//     to reading (O(batch_size) memory held by the batcher itself)
//
// Progress tracks streaming progress for the whole pipeline run.
package batch
