// Package queue provides the bounded in-memory admission queue between
// ingestion and the consumer.
//
// The queue is a fixed-capacity FIFO. Enqueue blocks up to a configured
// timeout when the queue is full, then fails with ErrFull so the producer can
// surface backpressure instead of dropping silently. Dequeue blocks until an
// item arrives, the context is canceled, or the queue is shut down and fully
// drained. Shutdown never discards queued items: consumers keep draining
// until the queue is empty, then receive ErrClosed.
package queue
