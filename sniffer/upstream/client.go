// Package upstream provides the shared HTTP transport for all third-party
// API clients: minimum inter-request spacing per upstream, a per-call
// timeout, and retry with backoff for transient failures.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"snifferweb3/sniffer/common"
)

const (
	// DefaultMinInterval spaces consecutive calls to the same upstream.
	DefaultMinInterval = 250 * time.Millisecond
	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 30 * time.Second
)

// DecodeFunc consumes a 2xx response body. Returning a *common.UpstreamError
// reclassifies the call (e.g. a rate-limit message inside a 200 envelope);
// any other error is treated as an invalid shape and not retried.
type DecodeFunc func(body []byte) error

// RetryPolicy is independent of the transport so it can be tested on its own.
// Rate limits and network errors back off linearly, timeouts exponentially.
type RetryPolicy struct {
	MaxAttempts    int
	RateLimitBase  time.Duration
	TimeoutBackoff *backoff.Backoff
}

// DefaultRetryPolicy matches the production settings: 3 attempts, 1s linear
// base for rate limits, 2s doubling curve capped at 15s for timeouts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		RateLimitBase: time.Second,
		TimeoutBackoff: &backoff.Backoff{
			Min:    2 * time.Second,
			Max:    15 * time.Second,
			Factor: 2,
		},
	}
}

// ShouldRetry reports whether another attempt is allowed after err.
func (p RetryPolicy) ShouldRetry(err *common.UpstreamError, attempt int) bool {
	return attempt < p.MaxAttempts && err.Transient()
}

// Delay returns how long to wait before the attempt following a failure of
// the given kind. attempt is 1-based.
func (p RetryPolicy) Delay(kind common.UpstreamErrorKind, attempt int) time.Duration {
	if kind == common.UpstreamTimeout && p.TimeoutBackoff != nil {
		return p.TimeoutBackoff.ForAttempt(float64(attempt - 1))
	}
	return time.Duration(attempt) * p.RateLimitBase
}

// Client is a rate-limited JSON transport for a single upstream. Calls to
// the same Client are serialized by the spacing rule in submission order.
type Client struct {
	name    string
	http    *http.Client
	policy  RetryPolicy
	spacing time.Duration
	logger  *slog.Logger

	mu   sync.Mutex
	next time.Time
}

// NewClient builds a transport for the named upstream. minInterval <= 0
// falls back to DefaultMinInterval, timeout <= 0 to DefaultTimeout, and the
// policy always gets at least one attempt.
func NewClient(name string, minInterval, timeout time.Duration, policy RetryPolicy, logger *slog.Logger) *Client {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Client{
		name:    name,
		http:    &http.Client{Timeout: timeout},
		policy:  policy,
		spacing: minInterval,
		logger:  logger.With("upstream", name),
	}
}

// Name returns the upstream identifier used in error reports.
func (c *Client) Name() string { return c.name }

// Get fetches rawURL and hands the body to decode. Transient failures are
// retried per the policy; the last error is returned once attempts are
// exhausted. Cancelling ctx aborts the in-flight request and any pending
// backoff wait.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header, decode DecodeFunc) error {
	var last *common.UpstreamError
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if err := c.waitTurn(ctx); err != nil {
			return err
		}
		uerr := c.do(ctx, rawURL, header, decode)
		if uerr == nil {
			return nil
		}
		last = uerr
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !c.policy.ShouldRetry(uerr, attempt) {
			break
		}
		delay := c.policy.Delay(uerr.Kind, attempt)
		c.logger.Warn("retrying upstream call",
			"attempt", attempt,
			"kind", string(uerr.Kind),
			"delay", delay)
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	return last
}

// GetJSON is Get with a plain json.Unmarshal into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	return c.Get(ctx, rawURL, header, func(body []byte) error {
		return json.Unmarshal(body, out)
	})
}

// waitTurn blocks until the spacing since the previous call has elapsed.
// The mutex is held across the wait so concurrent callers queue up in
// submission order.
func (c *Client) waitTurn(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wait := time.Until(c.next); wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	c.next = time.Now().Add(c.spacing)
	return nil
}

func (c *Client) do(ctx context.Context, rawURL string, header http.Header, decode DecodeFunc) *common.UpstreamError {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &common.UpstreamError{Kind: common.UpstreamNetworkError, Upstream: c.name, Err: err}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.classifyTransportErr(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.classifyTransportErr(err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &common.UpstreamError{Kind: common.UpstreamRateLimited, Upstream: c.name, Status: resp.StatusCode}
	case resp.StatusCode >= 400:
		return &common.UpstreamError{
			Kind:     common.UpstreamHTTPError,
			Upstream: c.name,
			Status:   resp.StatusCode,
			Err:      errors.New(truncate(string(body), 200)),
		}
	}

	if err := decode(body); err != nil {
		var uerr *common.UpstreamError
		if errors.As(err, &uerr) {
			return uerr
		}
		return &common.UpstreamError{Kind: common.UpstreamInvalidShape, Upstream: c.name, Err: err}
	}
	return nil
}

func (c *Client) classifyTransportErr(err error) *common.UpstreamError {
	kind := common.UpstreamNetworkError
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		kind = common.UpstreamTimeout
	} else if errors.Is(err, context.DeadlineExceeded) {
		kind = common.UpstreamTimeout
	}
	return &common.UpstreamError{Kind: kind, Upstream: c.name, Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
