package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func fastRetry(log *zap.Logger) RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: 20 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Logger: log}
}

// flaky answers 503 for the first fails requests and records the nonce
// header each request carried.
type flaky struct {
	fails int32
	hits  atomic.Int32

	mu     sync.Mutex
	nonces []string
}

func (f *flaky) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.nonces = append(f.nonces, r.Header.Get("X-Nonce"))
	f.mu.Unlock()
	if f.hits.Add(1) <= f.fails {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("maintenance"))
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (f *flaky) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.nonces...)
}

func TestDo_RebuildsRequestEachAttempt(t *testing.T) {
	f := &flaky{fails: 2}
	srv := httptest.NewServer(f)
	defer srv.Close()

	builds := 0
	resp, err := Do(context.Background(), srv.Client(), fastRetry(nil), func() (*http.Request, error) {
		builds++
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Nonce", fmt.Sprint(builds))
		return req, nil
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, builds)
	assert.Equal(t, []string{"1", "2", "3"}, f.seen(), "every attempt sends a freshly built request")
}

func TestDo_LogsEachRetry(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := &flaky{fails: 2}
	srv := httptest.NewServer(f)
	defer srv.Close()

	resp, err := Do(context.Background(), srv.Client(), fastRetry(zap.New(core)), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	})
	require.NoError(t, err)
	resp.Body.Close()

	entries := logs.FilterMessage("request attempt failed, retrying").All()
	require.Len(t, entries, 2)
	for i, e := range entries {
		assert.Equal(t, zapcore.WarnLevel, e.Level)
		fields := e.ContextMap()
		assert.EqualValues(t, i+1, fields["attempt"])
		assert.EqualValues(t, 3, fields["max_attempts"])
		assert.Contains(t, fields["error"], "HTTP 503: maintenance")
	}
	assert.Equal(t, 20*time.Millisecond, entries[0].ContextMap()["delay"])
	assert.Equal(t, 40*time.Millisecond, entries[1].ContextMap()["delay"])
}

func TestDo_ExhaustedAttemptsWrapLastError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := &flaky{fails: 100}
	srv := httptest.NewServer(f)
	defer srv.Close()

	_, err := Do(context.Background(), srv.Client(), fastRetry(zap.New(core)), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
	assert.Contains(t, err.Error(), "maintenance")
	assert.EqualValues(t, 3, f.hits.Load())
	assert.Equal(t, 2, logs.Len(), "the final attempt is not logged as a retry")
}

func TestDo_ClientErrorsReturnedWithoutRetry(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	resp, err := Do(context.Background(), srv.Client(), fastRetry(zap.New(core)), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.EqualValues(t, 1, hits.Load())
	assert.Zero(t, logs.Len())
}

func TestDo_BuildErrorStopsImmediately(t *testing.T) {
	limiterClosed := errors.New("rate limiter: context done")
	calls := 0
	_, err := Do(context.Background(), http.DefaultClient, fastRetry(nil), func() (*http.Request, error) {
		calls++
		return nil, limiterClosed
	})
	assert.ErrorIs(t, err, limiterClosed)
	assert.Contains(t, err.Error(), "build request")
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(&flaky{fails: 100})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	cfg := RetryConfig{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 2 * time.Second}

	start := time.Now()
	_, err := Do(ctx, srv.Client(), cfg, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
