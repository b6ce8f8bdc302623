// Package publisher provides interfaces and implementations for broadcasting
// session events (expiry, forbidden access, rate limiting) to whoever renders
// them.
package publisher

import (
	"context"
)

// Publisher publishes events to an external sink.
type Publisher interface {
	// Publish publishes one event.
	Publish(ctx context.Context, event *Event) error

	// Close releases any resources held by the publisher.
	Close() error
}
