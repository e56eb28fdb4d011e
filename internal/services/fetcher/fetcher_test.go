package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func testConfig() *common.FetcherConfig {
	cfg := common.NewDefaultConfig().Fetcher
	cfg.RequestDelay = "0s"
	cfg.InitialBackoff = "1ms"
	cfg.MaxBackoff = "2ms"
	cfg.MaxBodySize = 1024
	return &cfg
}

func TestFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/doc":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-1.4 body"))
		case "/octet":
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write([]byte("%PDF-1.4 body"))
		case "/file.pdf":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("%PDF-1.4 body"))
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html></html>"))
		case "/big":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write(make([]byte, 2048))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	f := NewFetcher(testConfig(), "test-agent", arbor.NewLogger())
	ctx := context.Background()

	body, err := f.Fetch(ctx, server.URL+"/doc")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(body))

	_, err = f.Fetch(ctx, server.URL+"/octet")
	assert.NoError(t, err)

	_, err = f.Fetch(ctx, server.URL+"/file.pdf")
	assert.NoError(t, err, ".pdf URLs are accepted whatever the declared type")

	_, err = f.Fetch(ctx, server.URL+"/page")
	assert.True(t, errors.Is(err, ErrUnsupportedContentType))

	_, err = f.Fetch(ctx, server.URL+"/big")
	assert.True(t, errors.Is(err, ErrTooLarge))

	_, err = f.Fetch(ctx, server.URL+"/missing")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestFetchWithRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF"))
	}))
	defer server.Close()

	cfg := testConfig()
	logger := arbor.NewLogger()
	f := NewFetcher(cfg, "", logger)

	body, err := FetchWithRetry(context.Background(), NewRetryPolicy(cfg), f, server.URL+"/doc", logger)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchWithRetry_NotFoundIsPermanent(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := testConfig()
	logger := arbor.NewLogger()

	_, err := FetchWithRetry(context.Background(), NewRetryPolicy(cfg), NewFetcher(cfg, "", logger), server.URL, logger)
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	p := NewRetryPolicy(&common.FetcherConfig{MaxAttempts: 3})

	tests := []struct {
		name       string
		attempt    int
		statusCode int
		err        error
		want       bool
	}{
		{"503 retried", 0, 503, errors.New("x"), true},
		{"429 retried", 1, 429, errors.New("x"), true},
		{"404 permanent", 0, 404, errors.New("x"), false},
		{"deadline retried", 0, 0, context.DeadlineExceeded, true},
		{"plain error permanent", 0, 0, errors.New("x"), false},
		{"attempts exhausted", 2, 503, errors.New("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ShouldRetry(tt.attempt, tt.statusCode, tt.err))
		})
	}
}

func TestRetryPolicy_CalculateBackoff(t *testing.T) {
	p := &RetryPolicy{InitialBackoff: time.Second, MaxBackoff: 4 * time.Second, BackoffMultiplier: 2}

	for attempt := 0; attempt < 5; attempt++ {
		backoff := p.CalculateBackoff(attempt)
		assert.LessOrEqual(t, backoff, 5*time.Second)
		assert.GreaterOrEqual(t, backoff, 750*time.Millisecond)
	}
}
