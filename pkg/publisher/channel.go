package publisher

import (
	"context"
	"errors"
	"sync"
)

const defaultSubscriberBuffer = 16

var errClosed = errors.New("publisher is closed")

// ChannelPublisher fans events out to in-process subscribers. Slow
// subscribers miss events rather than block the publisher.
type ChannelPublisher struct {
	mu          sync.Mutex
	subscribers []chan *Event
	closed      bool
}

// NewChannelPublisher creates an empty ChannelPublisher.
func NewChannelPublisher() *ChannelPublisher {
	return &ChannelPublisher{}
}

// Subscribe returns a channel that receives every event published after the
// call. The channel is closed when the publisher closes.
func (c *ChannelPublisher) Subscribe() <-chan *Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan *Event, defaultSubscriberBuffer)
	if c.closed {
		close(ch)
		return ch
	}
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Publish delivers event to every subscriber without blocking.
func (c *ChannelPublisher) Publish(_ context.Context, event *Event) error {
	if event == nil {
		return errNilEvent
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errClosed
	}
	for _, ch := range c.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Close closes every subscriber channel. It is safe to call more than once.
func (c *ChannelPublisher) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	for _, ch := range c.subscribers {
		close(ch)
	}
	c.subscribers = nil
	return nil
}
