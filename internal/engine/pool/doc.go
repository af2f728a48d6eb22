// Package pool provides a fixed-size goroutine pool with a bounded job queue.
//
// A Pool starts its workers at construction and keeps the worker count fixed
// for its lifetime. Jobs are submitted to a shared bounded queue; Submit
// blocks while the queue is full, which is how backpressure propagates back
// to the producer.
//
// # Basic Usage
//
//	p, err := pool.New(4) // 4 workers, queue capacity 8
//	if err != nil {
//	    return err
//	}
//	for _, item := range items {
//	    if err := p.Submit(ctx, func() { process(item) }); err != nil {
//	        break
//	    }
//	}
//	p.DrainAndJoin() // every submitted job has finished after this returns
//
// # Shutdown
//
// DrainAndJoin enqueues exactly one shutdown message per worker behind all
// previously submitted jobs and waits for every worker to exit. There is no
// mid-flight cancellation: a started job always runs to completion.
//
// Each job runs inside a recover boundary, so a panicking job never takes
// its worker down with it.
package pool
