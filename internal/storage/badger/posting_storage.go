package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Geldren1/nato-website-2/internal/interfaces"
	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// maxConflictRetries bounds retries when two writers touch the same key
const maxConflictRetries = 3

// PostingStorage implements the PostingStorage interface for Badger
type PostingStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.PostingStorage = (*PostingStorage)(nil)

// NewPostingStorage creates a new PostingStorage instance
func NewPostingStorage(db *BadgerDB, logger arbor.ILogger) *PostingStorage {
	return &PostingStorage{
		db:     db,
		logger: logger,
	}
}

func (s *PostingStorage) GetByCode(ctx context.Context, code string) (*models.Posting, error) {
	var posting models.Posting
	if err := s.db.Store().Get(code, &posting); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrPostingNotFound, code)
		}
		return nil, fmt.Errorf("failed to get posting %s: %w", code, err)
	}
	return &posting, nil
}

func (s *PostingStorage) ListBySource(ctx context.Context, issuingBody string, postingType models.PostingType) ([]*models.Posting, error) {
	var postings []models.Posting
	query := badgerhold.Where("IssuingBody").Eq(issuingBody).And("PostingType").Eq(postingType)
	if err := s.db.Store().Find(&postings, query); err != nil {
		return nil, fmt.Errorf("failed to list postings for %s/%s: %w", issuingBody, postingType, err)
	}
	return toPointers(postings), nil
}

func (s *PostingStorage) ListActive(ctx context.Context) ([]*models.Posting, error) {
	var postings []models.Posting
	if err := s.db.Store().Find(&postings, badgerhold.Where("IsActive").Eq(true)); err != nil {
		return nil, fmt.Errorf("failed to list active postings: %w", err)
	}
	return toPointers(postings), nil
}

func (s *PostingStorage) Count(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Posting{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count postings: %w", err)
	}
	return int(count), nil
}

// Upsert runs fn against the stored posting inside one Badger transaction.
// Conflicting concurrent writers are retried.
func (s *PostingStorage) Upsert(ctx context.Context, code string, fn interfaces.PostingMutator) (*models.Posting, error) {
	if code == "" {
		return nil, fmt.Errorf("posting code is required")
	}

	var written *models.Posting
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		err = s.db.Store().Badger().Update(func(tx *badger.Txn) error {
			var existing *models.Posting
			var stored models.Posting
			getErr := s.db.Store().TxGet(tx, code, &stored)
			switch {
			case getErr == nil:
				existing = &stored
			case errors.Is(getErr, badgerhold.ErrNotFound):
			default:
				return fmt.Errorf("failed to read posting %s: %w", code, getErr)
			}

			next, fnErr := fn(existing)
			if fnErr != nil {
				return fnErr
			}
			if next == nil {
				return fmt.Errorf("mutator returned no posting for %s", code)
			}
			if next.Code != code {
				return fmt.Errorf("posting code is immutable: %s != %s", next.Code, code)
			}

			if err := s.db.Store().TxUpsert(tx, code, next); err != nil {
				return fmt.Errorf("failed to write posting %s: %w", code, err)
			}
			written = next
			return nil
		})

		if !errors.Is(err, badger.ErrConflict) {
			break
		}

		s.logger.Debug().Str("code", code).Int("attempt", attempt+1).Msg("Transaction conflict, retrying")
	}

	if err != nil {
		return nil, err
	}
	return written, nil
}

func (s *PostingStorage) TouchChecked(ctx context.Context, codes []string, at time.Time) error {
	for _, code := range codes {
		_, err := s.Upsert(ctx, code, func(existing *models.Posting) (*models.Posting, error) {
			if existing == nil {
				return nil, fmt.Errorf("%w: %s", interfaces.ErrPostingNotFound, code)
			}
			t := at
			existing.LastCheckedAt = &t
			return existing, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PostingStorage) SetActive(ctx context.Context, code string, active bool) error {
	_, err := s.Upsert(ctx, code, func(existing *models.Posting) (*models.Posting, error) {
		if existing == nil {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrPostingNotFound, code)
		}
		existing.IsActive = active
		existing.UpdatedAt = time.Now().UTC()
		return existing, nil
	})
	return err
}

func (s *PostingStorage) AcknowledgeChanges(ctx context.Context, codes []string) error {
	for _, code := range codes {
		_, err := s.Upsert(ctx, code, func(existing *models.Posting) (*models.Posting, error) {
			if existing == nil {
				return nil, fmt.Errorf("%w: %s", interfaces.ErrPostingNotFound, code)
			}
			existing.LastChangedFields = nil
			return existing, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database
func (s *PostingStorage) Close() error {
	return s.db.Close()
}

func toPointers(postings []models.Posting) []*models.Posting {
	result := make([]*models.Posting, len(postings))
	for i := range postings {
		result[i] = &postings[i]
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result
}
