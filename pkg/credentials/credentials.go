// Package credentials holds the session credential record and persists it
// through a pluggable Backend.
package credentials

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/folio/pkg/diagnostics"
)

var errEmptyAccessToken = errors.New("access token cannot be empty")

// Store owns the current Record. Persistence failures are logged and never
// returned, so a failed write leaves the previously stored record in place.
type Store struct {
	mu      sync.Mutex
	backend Backend
	sink    *diagnostics.Sink
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSink sets the diagnostic sink used to report persistence failures.
func WithSink(sink *diagnostics.Sink) Option {
	return func(s *Store) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// NewStore creates a Store on top of backend. A nil backend falls back to an
// in-memory one.
func NewStore(backend Backend, opts ...Option) *Store {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	s := &Store{
		backend: backend,
		sink:    diagnostics.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Save replaces the stored record with rec.
func (s *Store) Save(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.AccessToken == "" {
		s.sink.Warn("credentials not saved", zap.Error(errEmptyAccessToken))
		return
	}

	slots := Slots{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
	}
	if rec.ExpiresAt != nil {
		slots.ExpiresAt = rec.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}

	if err := s.backend.Store(slots); err != nil {
		s.sink.Error("credentials not saved", zap.Error(err))
	}
}

// Load returns the stored record. ok is false when no access token is stored
// or the backend cannot be read.
func (s *Store) Load() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, ok := s.load()
	if !ok || slots.AccessToken == "" {
		return Record{}, false
	}

	rec := Record{
		AccessToken:  slots.AccessToken,
		RefreshToken: slots.RefreshToken,
	}
	if at, err := parseExpiry(slots.ExpiresAt); err == nil && !at.IsZero() {
		rec.ExpiresAt = &at
	}
	return rec, true
}

// AccessToken returns the stored access token.
func (s *Store) AccessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, ok := s.load()
	if !ok || slots.AccessToken == "" {
		return "", false
	}
	return slots.AccessToken, true
}

// RefreshToken returns the stored refresh token.
func (s *Store) RefreshToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, ok := s.load()
	if !ok || slots.RefreshToken == "" {
		return "", false
	}
	return slots.RefreshToken, true
}

// ExpiresAt returns the stored expiry instant.
func (s *Store) ExpiresAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, ok := s.load()
	if !ok {
		return time.Time{}, false
	}
	at, err := parseExpiry(slots.ExpiresAt)
	if err != nil || at.IsZero() {
		return time.Time{}, false
	}
	return at, true
}

// IsExpired reports whether an expiry is stored and has been reached.
func (s *Store) IsExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, ok := s.load()
	if !ok {
		return false
	}
	return s.expired(slots)
}

// IsAuthenticated reports whether a non-expired access token is stored.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, ok := s.load()
	if !ok || slots.AccessToken == "" {
		return false
	}
	return !s.expired(slots)
}

// ValidAccessToken returns the access token only when it is not expired.
func (s *Store) ValidAccessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, ok := s.load()
	if !ok || slots.AccessToken == "" || s.expired(slots) {
		return "", false
	}
	return slots.AccessToken, true
}

// Clear removes all stored fields. Calling it repeatedly is harmless.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Clear(); err != nil {
		s.sink.Error("credentials not cleared", zap.Error(err))
	}
}

func (s *Store) load() (Slots, bool) {
	slots, err := s.backend.Load()
	if err != nil {
		s.sink.Error("credentials not readable", zap.Error(err))
		return Slots{}, false
	}
	return slots, true
}

// expired treats an unparsable expiry as reached.
func (s *Store) expired(slots Slots) bool {
	at, err := parseExpiry(slots.ExpiresAt)
	if err != nil {
		s.sink.Warn("credential expiry unreadable", zap.Error(err))
		return true
	}
	if at.IsZero() {
		return false
	}
	return !s.now().Before(at)
}

func parseExpiry(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	at, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing expires_at: %w", err)
	}
	return at, nil
}
