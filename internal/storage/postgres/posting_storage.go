package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Geldren1/nato-website-2/internal/interfaces"
	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/ternarybob/arbor"
)

const postingsTable = "postings"

// postingColumns is the column order shared by selects and inserts
var postingColumns = []string{
	"code", "posting_type", "issuing_body",
	"page_url", "document_url", "source_listing_url",
	"name", "contract_type", "estimated_value", "currency", "contract_duration",
	"document_classification", "eligible_organization_types",
	"clarification_deadline", "clarification_deadline_parsed",
	"bid_closing_date", "bid_closing_date_parsed",
	"expected_contract_award_date", "expected_contract_award_date_parsed",
	"target_issue_date", "target_issue_date_parsed",
	"submission_instructions", "contact_person", "contact_email", "summary",
	"content_hash", "update_count", "last_changed_fields", "last_content_update",
	"amendment_count", "has_amendments", "last_amendment_at",
	"is_active", "created_at", "updated_at", "last_checked_at", "extracted_at", "removed_at",
}

// PostingStorage implements the PostingStorage interface on PostgreSQL
type PostingStorage struct {
	db     *PostgresDB
	logger arbor.ILogger
}

var _ interfaces.PostingStorage = (*PostingStorage)(nil)

// NewPostingStorage creates a PostgreSQL posting store
func NewPostingStorage(db *PostgresDB, logger arbor.ILogger) *PostingStorage {
	return &PostingStorage{db: db, logger: logger}
}

func postingValues(p *models.Posting) []interface{} {
	changed := p.LastChangedFields
	if changed == nil {
		changed = []string{}
	}
	return []interface{}{
		p.Code, string(p.PostingType), p.IssuingBody,
		p.PageURL, p.DocumentURL, p.SourceListingURL,
		p.Name, p.ContractType, p.EstimatedValue, p.Currency, p.ContractDuration,
		p.DocumentClassification, p.EligibleOrganizationTypes,
		p.ClarificationDeadline, p.ClarificationDeadlineParsed,
		p.BidClosingDate, p.BidClosingDateParsed,
		p.ExpectedContractAwardDate, p.ExpectedContractAwardDateParsed,
		p.TargetIssueDate, p.TargetIssueDateParsed,
		p.SubmissionInstructions, p.ContactPerson, p.ContactEmail, p.Summary,
		p.ContentHash, p.UpdateCount, changed, p.LastContentUpdate,
		p.AmendmentCount, p.HasAmendments, p.LastAmendmentAt,
		p.IsActive, p.CreatedAt, p.UpdatedAt, p.LastCheckedAt, p.ExtractedAt, p.RemovedAt,
	}
}

func scanPosting(row pgx.Row) (*models.Posting, error) {
	var p models.Posting
	var postingType string
	err := row.Scan(
		&p.Code, &postingType, &p.IssuingBody,
		&p.PageURL, &p.DocumentURL, &p.SourceListingURL,
		&p.Name, &p.ContractType, &p.EstimatedValue, &p.Currency, &p.ContractDuration,
		&p.DocumentClassification, &p.EligibleOrganizationTypes,
		&p.ClarificationDeadline, &p.ClarificationDeadlineParsed,
		&p.BidClosingDate, &p.BidClosingDateParsed,
		&p.ExpectedContractAwardDate, &p.ExpectedContractAwardDateParsed,
		&p.TargetIssueDate, &p.TargetIssueDateParsed,
		&p.SubmissionInstructions, &p.ContactPerson, &p.ContactEmail, &p.Summary,
		&p.ContentHash, &p.UpdateCount, &p.LastChangedFields, &p.LastContentUpdate,
		&p.AmendmentCount, &p.HasAmendments, &p.LastAmendmentAt,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt, &p.LastCheckedAt, &p.ExtractedAt, &p.RemovedAt,
	)
	if err != nil {
		return nil, err
	}
	p.PostingType = models.PostingType(postingType)
	if len(p.LastChangedFields) == 0 {
		p.LastChangedFields = nil
	}
	return &p, nil
}

// upsertQuery builds the INSERT ... ON CONFLICT statement for one posting
func (s *PostingStorage) upsertQuery(p *models.Posting) (string, []interface{}, error) {
	suffix := "ON CONFLICT (code) DO UPDATE SET "
	for i, col := range postingColumns[1:] {
		if i > 0 {
			suffix += ", "
		}
		suffix += col + " = EXCLUDED." + col
	}
	return s.db.builder.
		Insert(postingsTable).
		Columns(postingColumns...).
		Values(postingValues(p)...).
		Suffix(suffix).
		ToSql()
}

func (s *PostingStorage) selectQuery() squirrel.SelectBuilder {
	return s.db.builder.Select(postingColumns...).From(postingsTable)
}

func (s *PostingStorage) GetByCode(ctx context.Context, code string) (*models.Posting, error) {
	query, args, err := s.selectQuery().Where(squirrel.Eq{"code": code}).ToSql()
	if err != nil {
		return nil, err
	}
	p, err := scanPosting(s.db.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrPostingNotFound, code)
		}
		return nil, fmt.Errorf("failed to get posting %s: %w", code, err)
	}
	return p, nil
}

func (s *PostingStorage) list(ctx context.Context, where squirrel.Sqlizer) ([]*models.Posting, error) {
	query, args, err := s.selectQuery().Where(where).OrderBy("code").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var postings []*models.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

func (s *PostingStorage) ListBySource(ctx context.Context, issuingBody string, postingType models.PostingType) ([]*models.Posting, error) {
	postings, err := s.list(ctx, squirrel.Eq{"issuing_body": issuingBody, "posting_type": string(postingType)})
	if err != nil {
		return nil, fmt.Errorf("failed to list postings for %s/%s: %w", issuingBody, postingType, err)
	}
	return postings, nil
}

func (s *PostingStorage) ListActive(ctx context.Context) ([]*models.Posting, error) {
	postings, err := s.list(ctx, squirrel.Eq{"is_active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list active postings: %w", err)
	}
	return postings, nil
}

func (s *PostingStorage) Count(ctx context.Context) (int, error) {
	query, args, err := s.db.builder.Select("COUNT(*)").From(postingsTable).ToSql()
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.db.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count postings: %w", err)
	}
	return count, nil
}

// codeLockQuery takes a transaction-scoped advisory lock keyed on the code. It
// serializes writers of a code that has no row yet, which FOR UPDATE cannot.
func (s *PostingStorage) codeLockQuery(code string) (string, []interface{}, error) {
	return s.db.builder.Select().Column(squirrel.Expr("pg_advisory_xact_lock(hashtext(?))", code)).ToSql()
}

// Upsert takes the code's advisory lock, reads the row with SELECT ... FOR
// UPDATE, applies fn and writes the result before committing.
func (s *PostingStorage) Upsert(ctx context.Context, code string, fn interfaces.PostingMutator) (*models.Posting, error) {
	if code == "" {
		return nil, fmt.Errorf("posting code is required")
	}

	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query, args, err := s.codeLockQuery(code)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to lock posting %s: %w", code, err)
	}

	query, args, err = s.selectQuery().Where(squirrel.Eq{"code": code}).Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return nil, err
	}

	existing, err := scanPosting(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to read posting %s: %w", code, err)
		}
		existing = nil
	}

	next, err := fn(existing)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, fmt.Errorf("mutator returned no posting for %s", code)
	}
	if next.Code != code {
		return nil, fmt.Errorf("posting code is immutable: %s != %s", next.Code, code)
	}

	query, args, err = s.upsertQuery(next)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to write posting %s: %w", code, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit posting %s: %w", code, err)
	}
	return next, nil
}

func (s *PostingStorage) update(ctx context.Context, set map[string]interface{}, where squirrel.Sqlizer) (int64, error) {
	query, args, err := s.db.builder.Update(postingsTable).SetMap(set).Where(where).ToSql()
	if err != nil {
		return 0, err
	}
	tag, err := s.db.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostingStorage) TouchChecked(ctx context.Context, codes []string, at time.Time) error {
	if len(codes) == 0 {
		return nil
	}
	if _, err := s.update(ctx, map[string]interface{}{"last_checked_at": at}, squirrel.Eq{"code": codes}); err != nil {
		return fmt.Errorf("failed to touch postings: %w", err)
	}
	return nil
}

func (s *PostingStorage) SetActive(ctx context.Context, code string, active bool) error {
	affected, err := s.update(ctx, map[string]interface{}{
		"is_active":  active,
		"updated_at": time.Now().UTC(),
	}, squirrel.Eq{"code": code})
	if err != nil {
		return fmt.Errorf("failed to set active for %s: %w", code, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", interfaces.ErrPostingNotFound, code)
	}
	return nil
}

func (s *PostingStorage) AcknowledgeChanges(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	if _, err := s.update(ctx, map[string]interface{}{"last_changed_fields": []string{}}, squirrel.Eq{"code": codes}); err != nil {
		return fmt.Errorf("failed to acknowledge changes: %w", err)
	}
	return nil
}

func (s *PostingStorage) Close() error {
	return s.db.Close()
}
