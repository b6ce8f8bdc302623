// Package diagnostics provides the structured event sink used by every folio
// component. The verbosity is decided once, when the Sink is built.
package diagnostics

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Environment selects how verbose a Sink is.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
	Test        Environment = "test"
)

// ParseEnvironment maps a config or flag value to an Environment.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case "", Development:
		return Development, nil
	case Production:
		return Production, nil
	case Test:
		return Test, nil
	default:
		return "", fmt.Errorf("unknown environment %q", s)
	}
}

// Sink emits diagnostic events. A nil *Sink is valid and drops everything.
type Sink struct {
	logger *zap.Logger
}

// New builds a Sink for the given environment. Development logs every
// request at debug level, production only warnings and above, test nothing.
func New(env Environment) (*Sink, error) {
	var (
		logger *zap.Logger
		err    error
	)

	switch env {
	case Test:
		logger = zap.NewNop()
	case Production:
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		logger, err = cfg.Build()
	default:
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	return &Sink{logger: logger}, nil
}

// NewFromLogger wraps an existing logger.
func NewFromLogger(logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{logger: logger}
}

// Nop returns a Sink that drops every event.
func Nop() *Sink {
	return &Sink{logger: zap.NewNop()}
}

// Logger exposes the underlying zap logger.
func (s *Sink) Logger() *zap.Logger {
	if s == nil || s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}

// Named returns a child sink scoped to a component.
func (s *Sink) Named(component string) *Sink {
	return &Sink{logger: s.Logger().Named(component)}
}

// RequestIssued records an outbound request before it is sent.
func (s *Sink) RequestIssued(method, path, requestID string, payload any) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
	}
	if payload != nil {
		fields = append(fields, zap.Any("payload", payload))
	}
	s.Logger().Debug("request issued", fields...)
}

// RequestSucceeded records a 2xx response.
func (s *Sink) RequestSucceeded(method, path, requestID string, status int, elapsed time.Duration) {
	s.Logger().Debug("request succeeded",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed),
	)
}

// RequestFailed records a classified failure.
func (s *Sink) RequestFailed(method, path, requestID, kind string, status int, message string) {
	s.Logger().Warn("request failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.String("kind", kind),
		zap.Int("status", status),
		zap.String("message", message),
	)
}

// RetryScheduled records a pending retry after a server error.
func (s *Sink) RetryScheduled(method, path, requestID string, attempt int, delay time.Duration) {
	s.Logger().Warn("retrying request",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
	)
}

func (s *Sink) Info(msg string, fields ...zap.Field) {
	s.Logger().Info(msg, fields...)
}

func (s *Sink) Warn(msg string, fields ...zap.Field) {
	s.Logger().Warn(msg, fields...)
}

func (s *Sink) Error(msg string, fields ...zap.Field) {
	s.Logger().Error(msg, fields...)
}

// Sync flushes buffered entries.
func (s *Sink) Sync() error {
	return s.Logger().Sync()
}
