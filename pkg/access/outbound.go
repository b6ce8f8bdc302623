package access

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

var errResponseTooLarge = errors.New("response body exceeds the configured limit")

// descriptor is the mutable state of one logical call across its attempts.
type descriptor struct {
	method    string
	path      string
	query     string
	body      []byte
	payload   any
	headers   http.Header
	requestID string
	attempt   int
}

func newDescriptor(method, path string, opts *RequestOptions) (*descriptor, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	desc := &descriptor{
		method:  method,
		path:    path,
		headers: http.Header{},
	}
	if opts == nil {
		return desc, nil
	}

	if len(opts.Params) > 0 {
		desc.query = opts.Params.Encode()
	}
	for k, vs := range opts.Headers {
		for _, v := range vs {
			desc.headers.Add(k, v)
		}
	}

	switch b := opts.Body.(type) {
	case nil:
	case json.RawMessage:
		desc.body = b
		desc.payload = b
	case []byte:
		desc.body = b
		desc.payload = json.RawMessage(b)
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		desc.body = encoded
		desc.payload = b
	}

	return desc, nil
}

// attemptResult is what one attempt produced: either a response or a
// transport error.
type attemptResult struct {
	status  int
	header  http.Header
	body    []byte
	elapsed time.Duration
	err     error
}

// send runs the outbound stage and one HTTP attempt bounded by the
// configured per-attempt timeout.
func (c *Client) send(ctx context.Context, desc *descriptor) *attemptResult {
	desc.requestID = uuid.NewString()

	var payload any
	if desc.payload != nil {
		payload = desc.payload
		if matchPath(desc.path, c.cfg.RedactedPaths) {
			payload = "[redacted]"
		}
	}
	c.cfg.Sink.RequestIssued(desc.method, desc.path, desc.requestID, payload)

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := c.buildRequest(attemptCtx, desc)
	if err != nil {
		return &attemptResult{err: err}
	}

	start := time.Now()
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return &attemptResult{err: err, elapsed: time.Since(start)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		return &attemptResult{err: fmt.Errorf("read response: %w", err), elapsed: time.Since(start)}
	}
	if int64(len(body)) > c.cfg.MaxResponseBytes {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return &attemptResult{
				status:  resp.StatusCode,
				err:     fmt.Errorf("%w (%d bytes)", errResponseTooLarge, c.cfg.MaxResponseBytes),
				elapsed: time.Since(start),
			}
		}
		// Non-2xx bodies keep a truncated prefix.
		body = body[:c.cfg.MaxResponseBytes]
	}

	return &attemptResult{
		status:  resp.StatusCode,
		header:  resp.Header,
		body:    body,
		elapsed: time.Since(start),
	}
}

func (c *Client) buildRequest(ctx context.Context, desc *descriptor) (*http.Request, error) {
	target := c.resolve(desc.path)
	if desc.query != "" {
		target += "?" + desc.query
	}

	var body io.Reader
	if desc.body != nil {
		body = bytes.NewReader(desc.body)
	}

	req, err := http.NewRequestWithContext(ctx, desc.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for k, vs := range desc.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if desc.body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set(requestIDHeader, desc.requestID)

	if token, ok := c.cfg.Store.ValidAccessToken(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

func (c *Client) resolve(path string) string {
	return strings.TrimRight(c.baseURL.String(), "/") + path
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
