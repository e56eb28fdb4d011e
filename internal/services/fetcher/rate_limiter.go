package fetcher

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces requests per host
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	delay    time.Duration
}

// NewRateLimiter creates a limiter allowing one request per delay for each host
func NewRateLimiter(delay time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		delay:    delay,
	}
}

// Wait blocks until a request to rawURL's host is allowed
func (rl *RateLimiter) Wait(ctx context.Context, rawURL string) error {
	if rl.delay <= 0 {
		return nil
	}

	domain := extractDomain(rawURL)
	if domain == "" {
		return nil
	}

	rl.mu.Lock()
	limiter, exists := rl.limiters[domain]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(rl.delay), 1)
		rl.limiters[domain] = limiter
	}
	rl.mu.Unlock()

	return limiter.Wait(ctx)
}

func extractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Host)
}
