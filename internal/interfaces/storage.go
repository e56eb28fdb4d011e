package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/Geldren1/nato-website-2/internal/models"
)

// ErrPostingNotFound is returned when no posting exists for a business key
var ErrPostingNotFound = errors.New("posting not found")

// PostingMutator receives the stored posting (nil when the key is new) and returns
// the posting to write. Returning an error aborts the transaction.
type PostingMutator func(existing *models.Posting) (*models.Posting, error)

// PostingStorage - interface for posting persistence
type PostingStorage interface {
	// Lookups
	GetByCode(ctx context.Context, code string) (*models.Posting, error)
	ListBySource(ctx context.Context, issuingBody string, postingType models.PostingType) ([]*models.Posting, error)
	ListActive(ctx context.Context) ([]*models.Posting, error)
	Count(ctx context.Context) (int, error)

	// Upsert reads, mutates and writes one posting inside a single transaction
	Upsert(ctx context.Context, code string, fn PostingMutator) (*models.Posting, error)

	// Lifecycle updates
	TouchChecked(ctx context.Context, codes []string, at time.Time) error
	SetActive(ctx context.Context, code string, active bool) error
	AcknowledgeChanges(ctx context.Context, codes []string) error

	Close() error
}
