package publisher

import (
	"errors"
	"time"
)

const (
	// SchemaSessionV1 is the schema identifier for session events.
	SchemaSessionV1 = "folio.session.v1"
)

// Session event types.
const (
	TypeUnauthenticated = "session.unauthenticated"
	TypeForbidden       = "session.forbidden"
	TypeRateLimited     = "session.rate_limited"
)

// ErrEmptyType indicates an event was created without a type.
var ErrEmptyType = errors.New("cannot create event with empty type")

// Event is the broadcast payload for a session-level side effect.
type Event struct {
	Schema            string    `json:"schema"`
	Type              string    `json:"type"`
	RequestID         string    `json:"request_id,omitempty"`
	Path              string    `json:"path,omitempty"`
	Status            int       `json:"status,omitempty"`
	RetryAfterSeconds *int      `json:"retry_after_seconds,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// NewEvent creates an Event of the given type.
func NewEvent(eventType string) (*Event, error) {
	if eventType == "" {
		return nil, ErrEmptyType
	}

	return &Event{
		Schema:     SchemaSessionV1,
		Type:       eventType,
		OccurredAt: time.Now(),
	}, nil
}

// NewRateLimitedEvent creates a session.rate_limited event. retryAfter is
// only recorded when ok is true.
func NewRateLimitedEvent(retryAfter time.Duration, ok bool) *Event {
	event, _ := NewEvent(TypeRateLimited)
	if ok {
		seconds := int(retryAfter / time.Second)
		event.RetryAfterSeconds = &seconds
	}
	return event
}
