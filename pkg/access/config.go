package access

import (
	"context"
	"net/http"
	"time"

	"github.com/papercomputeco/folio/pkg/credentials"
	"github.com/papercomputeco/folio/pkg/diagnostics"
	"github.com/papercomputeco/folio/pkg/publisher"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultMaxRetries       = 3
	defaultBackoffBase      = time.Second
	defaultMaxResponseBytes = 10 << 20
	defaultLoginPath        = "/login"
	defaultForbiddenPath    = "/forbidden"
	defaultUserAgent        = "folio/0.1"
)

// defaultAuthPaths are the endpoints whose 401 responses mean "bad
// credentials on a login form", not "session expired".
var defaultAuthPaths = []string{"/auth/login", "/auth/register", "/auth/refresh"}

// defaultRedactedPaths are the endpoints whose request payloads carry
// secrets and never reach the diagnostic sink.
var defaultRedactedPaths = []string{"/auth/login", "/auth/register", "/auth/refresh", "/auth/oauth/callback"}

// HTTPDoer sends a prepared request. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Navigator moves the user to another surface, e.g. the login screen.
type Navigator interface {
	Navigate(target string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(target string)

func (f NavigatorFunc) Navigate(target string) { f(target) }

// Callbacks are the session side effects run by the inbound stage.
type Callbacks struct {
	// OnUnauthenticated runs after a 401 on a non-auth path, once the
	// credentials have been cleared.
	OnUnauthenticated func()
	// OnForbidden runs after a 403.
	OnForbidden func()
	// OnRateLimited runs after a 429. ok is false when the response carried
	// no usable Retry-After header.
	OnRateLimited func(retryAfter time.Duration, ok bool)
}

// merge overlays the non-nil callbacks of patch onto c.
func (c Callbacks) merge(patch Callbacks) Callbacks {
	if patch.OnUnauthenticated != nil {
		c.OnUnauthenticated = patch.OnUnauthenticated
	}
	if patch.OnForbidden != nil {
		c.OnForbidden = patch.OnForbidden
	}
	if patch.OnRateLimited != nil {
		c.OnRateLimited = patch.OnRateLimited
	}
	return c
}

// Config configures a Client.
type Config struct {
	// BaseURL is prefixed to every request path. Required.
	BaseURL string

	// Timeout bounds each attempt separately. Defaults to 30s.
	Timeout time.Duration

	// MaxRetries is the number of resubmissions after a 5xx. Zero means the
	// default of 3; a negative value disables retries.
	MaxRetries int

	// BackoffBase is the delay before the first retry; each later retry
	// doubles it. Defaults to 1s.
	BackoffBase time.Duration

	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes int64

	HTTPClient HTTPDoer
	Store      *credentials.Store
	Sink       *diagnostics.Sink

	// Navigator and Publisher back the default callbacks.
	Navigator Navigator
	Publisher publisher.Publisher

	LoginPath     string
	ForbiddenPath string

	// AuthPaths overrides the endpoints exempt from session clearing on 401.
	AuthPaths []string

	// RedactedPaths overrides the endpoints whose payloads are logged as
	// "[redacted]".
	RedactedPaths []string

	UserAgent string

	// Sleep waits between retries. Tests replace it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = defaultMaxResponseBytes
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Store == nil {
		c.Store = credentials.NewStore(nil)
	}
	if c.Sink == nil {
		c.Sink = diagnostics.Nop()
	}
	if c.Publisher == nil {
		c.Publisher = publisher.NewNopPublisher()
	}
	if c.LoginPath == "" {
		c.LoginPath = defaultLoginPath
	}
	if c.ForbiddenPath == "" {
		c.ForbiddenPath = defaultForbiddenPath
	}
	if len(c.AuthPaths) == 0 {
		c.AuthPaths = defaultAuthPaths
	}
	if len(c.RedactedPaths) == 0 {
		c.RedactedPaths = defaultRedactedPaths
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.Sleep == nil {
		c.Sleep = sleepContext
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
