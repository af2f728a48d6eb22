package merge

import (
	"context"
	"errors"
	"sync"
)

// DefaultChannelCapacity is the default result channel capacity.
const DefaultChannelCapacity = 8

// ErrReceiverGone is returned by Send once the sink has terminated.
var ErrReceiverGone = errors.New("result receiver is gone")

// Channel is a bounded multi-producer, single-consumer channel of results.
type Channel struct {
	messages chan Message
	gone     chan struct{}
	goneOnce sync.Once
}

// NewChannel creates a result channel. A non-positive capacity selects DefaultChannelCapacity.
func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	return &Channel{
		messages: make(chan Message, capacity),
		gone:     make(chan struct{}),
	}
}

// Send delivers a result, blocking while the channel is full.
func (c *Channel) Send(ctx context.Context, r Result) error {
	return c.send(ctx, Message{Result: r})
}

// Shutdown enqueues the sentinel behind every result already sent.
func (c *Channel) Shutdown(ctx context.Context) error {
	return c.send(ctx, ShutdownMessage())
}

func (c *Channel) send(ctx context.Context, msg Message) error {
	select {
	case <-c.gone:
		return ErrReceiverGone
	default:
	}

	select {
	case c.messages <- msg:
		return nil
	case <-c.gone:
		return ErrReceiverGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the receiver as gone. Blocked and future sends fail with ErrReceiverGone.
func (c *Channel) Close() {
	c.goneOnce.Do(func() {
		close(c.gone)
	})
}

// Capacity returns the channel capacity.
func (c *Channel) Capacity() int {
	return cap(c.messages)
}

// Len returns the number of buffered messages.
func (c *Channel) Len() int {
	return len(c.messages)
}
