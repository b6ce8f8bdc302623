// Package access is the single outbound HTTP client of folio. Every call to
// the remote API goes through a Client, which attaches credentials,
// classifies failures, retries server errors and runs the session side
// effects (credential clearing, navigation, rate-limit notification).
package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/folio/pkg/credentials"
	"github.com/papercomputeco/folio/pkg/publisher"
)

// Requester is the call contract consumed by the resource facades.
type Requester interface {
	Request(ctx context.Context, method, path string, opts *RequestOptions) (json.RawMessage, error)
	Do(ctx context.Context, method, path string, opts *RequestOptions, out any) error
}

// Ensure Client implements Requester at compile time.
var _ Requester = (*Client)(nil)

// RequestOptions carries the optional parts of a call.
type RequestOptions struct {
	// Params are encoded into the query string.
	Params url.Values
	// Body is JSON-encoded unless it is already []byte or json.RawMessage.
	Body any
	// Headers are added to every attempt.
	Headers http.Header
}

// Client mediates every outbound call.
type Client struct {
	baseURL *url.URL
	cfg     Config

	mu        sync.RWMutex
	callbacks Callbacks
}

// New builds a Client. Until Configure replaces them, the default callbacks
// navigate through cfg.Navigator and publish session events to
// cfg.Publisher.
func New(cfg Config) (*Client, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &Client{
		baseURL: base,
		cfg:     cfg,
	}, nil
}

// Configure overlays the non-nil callbacks in patch onto the current set.
// A replaced callback runs instead of the default behaviour.
func (c *Client) Configure(patch Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = c.callbacks.merge(patch)
}

// SaveCredentials stores rec in the credential store.
func (c *Client) SaveCredentials(rec credentials.Record) {
	c.cfg.Store.Save(rec)
}

// ClearCredentials removes the stored credentials.
func (c *Client) ClearCredentials() {
	c.cfg.Store.Clear()
}

// IsAuthenticated reports whether a non-expired access token is stored.
func (c *Client) IsAuthenticated() bool {
	return c.cfg.Store.IsAuthenticated()
}

// Credentials exposes the credential store.
func (c *Client) Credentials() *credentials.Store {
	return c.cfg.Store
}

// Request performs one call and returns the 2xx response body as is.
// Any other outcome is returned as an *Error after retries are exhausted.
func (c *Client) Request(ctx context.Context, method, path string, opts *RequestOptions) (json.RawMessage, error) {
	res, err := c.request(ctx, method, path, opts)
	if err != nil {
		return nil, err
	}
	return res.body, nil
}

// Do performs one call and decodes the 2xx response body into out.
func (c *Client) Do(ctx context.Context, method, path string, opts *RequestOptions, out any) error {
	res, err := c.request(ctx, method, path, opts)
	if err != nil {
		return err
	}
	if out == nil || len(res.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.body, out); err != nil {
		return newError(KindUnknown, res.status, "The server returned an unexpected response.", res.body,
			fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) request(ctx context.Context, method, path string, opts *RequestOptions) (*attemptResult, error) {
	desc, err := newDescriptor(method, path, opts)
	if err != nil {
		return nil, newError(KindUnknown, 0, "", nil, err)
	}

	for {
		res := c.send(ctx, desc)

		if res.err == nil && res.status >= 200 && res.status < 300 {
			c.cfg.Sink.RequestSucceeded(desc.method, desc.path, desc.requestID, res.status, res.elapsed)
			return res, nil
		}

		if res.err == nil && res.status >= 500 && desc.attempt < c.cfg.MaxRetries {
			delay := c.cfg.BackoffBase << desc.attempt
			desc.attempt++
			c.cfg.Sink.RetryScheduled(desc.method, desc.path, desc.requestID, desc.attempt, delay)
			if err := c.cfg.Sleep(ctx, delay); err != nil {
				return nil, c.fail(desc, c.classifyTransport(ctx, err))
			}
			continue
		}

		if errors.Is(res.err, errResponseTooLarge) {
			return nil, c.fail(desc, newError(KindUnknown, res.status, "The server response was too large.", nil, res.err))
		}
		if res.err != nil {
			return nil, c.fail(desc, c.classifyTransport(ctx, res.err))
		}
		return nil, c.fail(desc, c.classifyResponse(desc, res))
	}
}

func (c *Client) fail(desc *descriptor, classified *Error) *Error {
	c.cfg.Sink.RequestFailed(desc.method, desc.path, desc.requestID, string(classified.Kind), classified.Status, classified.Message)
	return classified
}

// classifyTransport maps a failure without a usable response.
func (c *Client) classifyTransport(ctx context.Context, err error) *Error {
	switch {
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
		return newError(KindUnknown, 0, "The request was canceled.", nil, ctx.Err())
	case isTimeout(err):
		return newError(KindTimeout, 0, "", nil, err)
	default:
		return newError(KindNetwork, 0, "", nil, err)
	}
}

// classifyResponse maps a non-2xx response and runs its side effects.
func (c *Client) classifyResponse(desc *descriptor, res *attemptResult) *Error {
	message := serverMessage(res.body)
	callbacks := c.currentCallbacks()

	switch {
	case res.status == http.StatusUnauthorized:
		if !matchPath(desc.path, c.cfg.AuthPaths) {
			c.cfg.Store.Clear()
			if callbacks.OnUnauthenticated != nil {
				callbacks.OnUnauthenticated()
			} else {
				c.navigate(c.cfg.LoginPath)
				c.publish(sessionEvent(publisher.TypeUnauthenticated, desc, res))
			}
		}
		return newError(KindUnauthorized, res.status, message, res.body, nil)

	case res.status == http.StatusBadRequest:
		return newError(KindValidation, res.status, message, res.body, nil)

	case res.status == http.StatusForbidden:
		if callbacks.OnForbidden != nil {
			callbacks.OnForbidden()
		} else {
			c.navigate(c.cfg.ForbiddenPath)
			c.publish(sessionEvent(publisher.TypeForbidden, desc, res))
		}
		return newError(KindForbidden, res.status, message, res.body, nil)

	case res.status == http.StatusNotFound:
		return newError(KindNotFound, res.status, message, res.body, nil)

	case res.status == http.StatusTooManyRequests:
		retryAfter, ok := parseRetryAfter(res.header.Get("Retry-After"), time.Now())
		if callbacks.OnRateLimited != nil {
			callbacks.OnRateLimited(retryAfter, ok)
		} else {
			c.publish(withResponse(publisher.NewRateLimitedEvent(retryAfter, ok), desc, res))
		}
		classified := newError(KindRateLimitExceeded, res.status, message, res.body, nil)
		classified.RetryAfter = retryAfter
		return classified

	case res.status >= 500:
		return newError(KindServer, res.status, message, res.body, nil)

	default:
		return newError(KindUnknown, res.status, message, res.body, nil)
	}
}

func (c *Client) currentCallbacks() Callbacks {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.callbacks
}

func matchPath(path string, paths []string) bool {
	normalized := normalizePath(path)
	for _, p := range paths {
		if normalizePath(p) == normalized {
			return true
		}
	}
	return false
}

func sessionEvent(eventType string, desc *descriptor, res *attemptResult) *publisher.Event {
	event, _ := publisher.NewEvent(eventType)
	return withResponse(event, desc, res)
}

// withResponse stamps event with the attempt that triggered it.
func withResponse(event *publisher.Event, desc *descriptor, res *attemptResult) *publisher.Event {
	event.RequestID = desc.requestID
	event.Path = desc.path
	event.Status = res.status
	return event
}

func (c *Client) publish(event *publisher.Event) {
	if err := c.cfg.Publisher.Publish(context.Background(), event); err != nil {
		c.cfg.Sink.Warn("session event not published", zap.String("type", event.Type), zap.Error(err))
	}
}

func (c *Client) navigate(target string) {
	if c.cfg.Navigator == nil {
		c.cfg.Sink.Info("navigation requested", zap.String("target", target))
		return
	}
	c.cfg.Navigator.Navigate(target)
}

// serverMessage extracts the "message" or "error" string from a JSON
// error body.
func serverMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var parsed struct {
		Message any `json:"message"`
		Error   any `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if s, ok := parsed.Message.(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	if s, ok := parsed.Error.(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return ""
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("base url is required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func normalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = "/" + strings.Trim(p, "/")
	return p
}
