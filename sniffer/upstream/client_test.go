package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpillora/backoff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snifferweb3/sniffer/common"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastPolicy keeps retries at 3 attempts but with negligible waits.
func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		RateLimitBase: time.Millisecond,
		TimeoutBackoff: &backoff.Backoff{
			Min:    time.Millisecond,
			Max:    2 * time.Millisecond,
			Factor: 2,
		},
	}
}

func newTestClient(policy RetryPolicy, timeout time.Duration) *Client {
	return NewClient("test", time.Millisecond, timeout, policy, testLogger())
}

func TestGetJSONSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"value":"ok"}`)
	}))
	defer server.Close()

	var out struct {
		Value string `json:"value"`
	}
	c := newTestClient(fastPolicy(), time.Second)
	require.NoError(t, c.GetJSON(context.Background(), server.URL, nil, &out))
	assert.Equal(t, "ok", out.Value)
}

func TestRetryCeilingOnTimeout(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := newTestClient(fastPolicy(), 20*time.Millisecond)
	err := c.GetJSON(context.Background(), server.URL, nil, &struct{}{})

	var uerr *common.UpstreamError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, common.UpstreamTimeout, uerr.Kind)
	assert.Equal(t, int32(3), calls.Load(), "a call that always times out is attempted exactly 3 times")
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(fastPolicy(), time.Second)
	err := c.GetJSON(context.Background(), server.URL, nil, &struct{}{})

	var uerr *common.UpstreamError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, common.UpstreamHTTPError, uerr.Kind)
	assert.Equal(t, http.StatusNotFound, uerr.Status)
	assert.Equal(t, int32(1), calls.Load(), "4xx other than 429 must not be retried")
}

func TestRateLimitedRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprintln(w, `{"value":"ok"}`)
	}))
	defer server.Close()

	var out struct {
		Value string `json:"value"`
	}
	c := newTestClient(fastPolicy(), time.Second)
	require.NoError(t, c.GetJSON(context.Background(), server.URL, nil, &out))
	assert.Equal(t, int32(3), calls.Load())
}

func TestServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(fastPolicy(), time.Second)
	err := c.GetJSON(context.Background(), server.URL, nil, &struct{}{})

	var uerr *common.UpstreamError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, common.UpstreamHTTPError, uerr.Kind)
	assert.Equal(t, int32(3), calls.Load(), "5xx is transient and retried to the ceiling")
}

func TestInvalidShapeNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprintln(w, `not json at all`)
	}))
	defer server.Close()

	c := newTestClient(fastPolicy(), time.Second)
	err := c.GetJSON(context.Background(), server.URL, nil, &struct{}{})

	var uerr *common.UpstreamError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, common.UpstreamInvalidShape, uerr.Kind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDecodeCanReclassify(t *testing.T) {
	// A 200 response whose body carries a rate-limit message must be
	// retried like a real 429.
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			fmt.Fprintln(w, `{"status":"0","result":"Max rate limit reached"}`)
			return
		}
		fmt.Fprintln(w, `{"status":"1","result":"fine"}`)
	}))
	defer server.Close()

	c := newTestClient(fastPolicy(), time.Second)
	err := c.Get(context.Background(), server.URL, nil, func(body []byte) error {
		if calls.Load() < 2 {
			return &common.UpstreamError{Kind: common.UpstreamRateLimited, Upstream: "test"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestZeroMaxAttemptsStillCallsOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient("test", time.Millisecond, time.Second, RetryPolicy{}, testLogger())
	err := c.GetJSON(context.Background(), server.URL, nil, &struct{}{})

	var uerr *common.UpstreamError
	require.True(t, errors.As(err, &uerr), "a zero-valued policy must still surface the real failure")
	assert.Equal(t, int32(1), calls.Load())
}

func TestMinIntervalSpacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{}`)
	}))
	defer server.Close()

	c := NewClient("test", 40*time.Millisecond, time.Second, fastPolicy(), testLogger())
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, c.GetJSON(context.Background(), server.URL, nil, &struct{}{}))
	}
	// Three calls require two full spacing intervals between them.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestContextCancellationAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	c := newTestClient(fastPolicy(), 10*time.Second)
	go func() {
		done <- c.GetJSON(ctx, server.URL, nil, &struct{}{})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled call did not return promptly")
	}
}

func TestRetryPolicyDelays(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, time.Second, p.Delay(common.UpstreamRateLimited, 1))
	assert.Equal(t, 2*time.Second, p.Delay(common.UpstreamRateLimited, 2))
	assert.Equal(t, 2*time.Second, p.Delay(common.UpstreamTimeout, 1))
	assert.Equal(t, 4*time.Second, p.Delay(common.UpstreamTimeout, 2))
	// Capped by the backoff maximum.
	assert.LessOrEqual(t, p.Delay(common.UpstreamTimeout, 10), 15*time.Second)
}
