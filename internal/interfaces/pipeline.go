package interfaces

import (
	"context"
	"time"

	"github.com/Geldren1/nato-website-2/internal/models"
)

// BrowserSession renders pages in one browser instance owned by a single run
type BrowserSession interface {
	Render(ctx context.Context, pageURL string, timeout time.Duration) (*models.RenderedPage, error)
	Close() error
}

// BrowserFactory starts browser sessions
type BrowserFactory interface {
	NewSession(ctx context.Context) (BrowserSession, error)
}

// PageSession discovers and resolves postings over one browser session
type PageSession interface {
	ListingDiscoverer
	PageResolver
	Close() error
}

// PageSessionFactory opens a PageSession per reconciliation run
type PageSessionFactory interface {
	Open(ctx context.Context) (PageSession, error)
}

// ListingDiscoverer enumerates candidate postings from a rendered listing page.
// Failures are reported as an empty result.
type ListingDiscoverer interface {
	Discover(ctx context.Context, source *models.Source) []models.ListingLink
}

// PageResolver visits a posting page and finds its title and document link
type PageResolver interface {
	Resolve(ctx context.Context, pageURL string, documentSelector string) (*models.PageInfo, error)
}

// DocumentFetcher downloads a document and validates its content type
type DocumentFetcher interface {
	Fetch(ctx context.Context, documentURL string) ([]byte, error)
}

// TextExtractor converts a document into page-marked text
type TextExtractor interface {
	ExtractText(ctx context.Context, document []byte) (string, error)
}

// ExtractionInput carries the document text and page metadata for field extraction
type ExtractionInput struct {
	Text        string
	Code        string
	PageURL     string
	DocumentURL string
	PageTitle   string
}

// FieldExtractor produces a type-specific field map from document text
type FieldExtractor interface {
	PostingType() models.PostingType
	TargetFields() []string
	Extract(ctx context.Context, input ExtractionInput) models.FieldMap
}

// NotificationDispatcher consumes the change-set of a run
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, result *models.RunResult) error
}

// RunLock prevents two processes reconciling the same source at once
type RunLock interface {
	Acquire(ctx context.Context, name string) (release func(), acquired bool, err error)
}

// RunRecorder observes run outcomes (metrics)
type RunRecorder interface {
	ObserveRun(result *models.RunResult)
	ObserveSuccession(result *models.SuccessionResult)
	ObserveBackendCall(provider string, ok bool)
}
