package publisher

import (
	"context"
	"errors"
)

var errNilEvent = errors.New("event is required")

// MultiPublisher publishes every event to each wrapped publisher.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher combines publishers. Nil entries are skipped.
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// Publish publishes to all publishers and joins their errors.
func (m *MultiPublisher) Publish(ctx context.Context, event *Event) error {
	if event == nil {
		return errNilEvent
	}
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all publishers and joins their errors.
func (m *MultiPublisher) Close() error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
