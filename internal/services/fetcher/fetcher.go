package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// ErrUnsupportedContentType is returned when the response is not a document
var ErrUnsupportedContentType = errors.New("unsupported content type")

// ErrTooLarge is returned when the body exceeds the configured maximum
var ErrTooLarge = errors.New("document exceeds maximum size")

// StatusError reports a non-200 response
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Fetcher downloads documents over HTTP. It makes exactly one attempt per call.
type Fetcher struct {
	client       *http.Client
	config       *common.FetcherConfig
	userAgent    string
	rateLimiter  *RateLimiter
	logger       arbor.ILogger
	allowedTypes []string
}

var _ interfaces.DocumentFetcher = (*Fetcher)(nil)

// NewFetcher creates a document fetcher
func NewFetcher(config *common.FetcherConfig, userAgent string, logger arbor.ILogger) *Fetcher {
	allowed := make([]string, 0, len(config.AllowedContentTypes))
	for _, t := range config.AllowedContentTypes {
		allowed = append(allowed, strings.ToLower(strings.TrimSpace(t)))
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: common.ParseDurationOr(config.Timeout, 30*time.Second),
		},
		config:       config,
		userAgent:    userAgent,
		rateLimiter:  NewRateLimiter(common.ParseDurationOr(config.RequestDelay, 0)),
		logger:       logger,
		allowedTypes: allowed,
	}
}

// Fetch downloads documentURL and validates its content type
func (f *Fetcher) Fetch(ctx context.Context, documentURL string) ([]byte, error) {
	_, body, err := f.fetch(ctx, documentURL)
	return body, err
}

func (f *Fetcher) fetch(ctx context.Context, documentURL string) (int, []byte, error) {
	if err := f.rateLimiter.Wait(ctx, documentURL); err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, documentURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "application/pdf,*/*")

	startTime := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("GET %s: %w", documentURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil, &StatusError{URL: documentURL, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if !f.acceptsContentType(contentType, documentURL) {
		return resp.StatusCode, nil, fmt.Errorf("%w: %q from %s", ErrUnsupportedContentType, contentType, documentURL)
	}

	reader := io.Reader(resp.Body)
	if f.config.MaxBodySize > 0 {
		reader = io.LimitReader(resp.Body, f.config.MaxBodySize+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read body of %s: %w", documentURL, err)
	}
	if f.config.MaxBodySize > 0 && int64(len(body)) > f.config.MaxBodySize {
		return resp.StatusCode, nil, fmt.Errorf("%w: %s", ErrTooLarge, documentURL)
	}

	f.logger.Debug().
		Str("url", documentURL).
		Str("content_type", contentType).
		Int("bytes", len(body)).
		Dur("duration", time.Since(startTime)).
		Msg("Document downloaded")

	return resp.StatusCode, body, nil
}

// acceptsContentType allows configured media types, anything naming pdf, or a
// .pdf URL regardless of the declared type.
func (f *Fetcher) acceptsContentType(contentType, documentURL string) bool {
	if strings.HasSuffix(strings.ToLower(stripQuery(documentURL)), ".pdf") {
		return true
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	if strings.Contains(mediaType, "pdf") {
		return true
	}
	for _, allowed := range f.allowedTypes {
		if mediaType == allowed {
			return true
		}
	}
	return false
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}

// FetchWithRetry downloads documentURL, applying policy around single-attempt fetches
func FetchWithRetry(ctx context.Context, policy *RetryPolicy, fetcher interfaces.DocumentFetcher, documentURL string, logger arbor.ILogger) ([]byte, error) {
	var body []byte
	_, err := policy.Execute(ctx, logger, func() (int, error) {
		var fetchErr error
		body, fetchErr = fetcher.Fetch(ctx, documentURL)
		var statusErr *StatusError
		if errors.As(fetchErr, &statusErr) {
			return statusErr.StatusCode, fetchErr
		}
		if fetchErr != nil {
			return 0, fetchErr
		}
		return http.StatusOK, nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
