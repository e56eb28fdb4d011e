package reconciler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/interfaces"
	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/Geldren1/nato-website-2/internal/services/fetcher"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// ExtractorFunc returns the field extractor of a posting type
type ExtractorFunc func(postingType models.PostingType) (interfaces.FieldExtractor, error)

// Service reconciles the postings observed on a source against the store
type Service struct {
	storage    interfaces.PostingStorage
	pages      interfaces.PageSessionFactory
	documents  interfaces.DocumentFetcher
	retry      *fetcher.RetryPolicy
	text       interfaces.TextExtractor
	extractors ExtractorFunc
	config     *common.ReconcilerConfig
	logger     arbor.ILogger
	now        func() time.Time
}

// NewService creates a reconciler
func NewService(
	storage interfaces.PostingStorage,
	pages interfaces.PageSessionFactory,
	documents interfaces.DocumentFetcher,
	retry *fetcher.RetryPolicy,
	text interfaces.TextExtractor,
	extractors ExtractorFunc,
	config *common.ReconcilerConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		storage:    storage,
		pages:      pages,
		documents:  documents,
		retry:      retry,
		text:       text,
		extractors: extractors,
		config:     config,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// observedLink is a discovered listing link with its derived business key
type observedLink struct {
	code string
	link models.ListingLink
}

// run holds the state of one reconciliation pass
type run struct {
	source    *models.Source
	mode      models.RunMode
	session   interfaces.PageSession
	extractor interfaces.FieldExtractor
	limiter   *rate.Limiter
	result    *models.RunResult
	touched   []string
}

// Run performs one reconciliation pass over source. The result is always well
// formed; failures are reported in it rather than returned.
func (s *Service) Run(ctx context.Context, source *models.Source, mode models.RunMode) *models.RunResult {
	result := models.NewRunResult(uuid.New().String(), source.Name, mode)

	s.logger.Info().
		Str("run_id", result.RunID).
		Str("source", source.Name).
		Str("mode", string(mode)).
		Msg("Reconciliation run started")

	err := common.RunProtected(s.logger, "reconcile "+source.Name, func() error {
		return s.run(ctx, source, mode, result)
	})
	result.Finish(err)

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("run_id", result.RunID).
			Str("source", source.Name).
			Int("new", len(result.New)).
			Int("amended", len(result.Amendments)).
			Int("failed", result.FailedCount).
			Msg("Reconciliation run failed")
		return result
	}

	s.logger.Info().
		Str("run_id", result.RunID).
		Str("source", source.Name).
		Int("new", len(result.New)).
		Int("amended", len(result.Amendments)).
		Int("unchanged", result.UnchangedCount).
		Int("removed", result.RemovedCount).
		Int("failed", result.FailedCount).
		Float32("duration_seconds", float32(result.DurationSeconds)).
		Msg("Reconciliation run finished")

	return result
}

func (s *Service) run(ctx context.Context, source *models.Source, mode models.RunMode, result *models.RunResult) error {
	extractor, err := s.extractors(source.PostingType)
	if err != nil {
		return err
	}

	session, err := s.pages.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("Failed to close browser session")
		}
	}()

	links := session.Discover(ctx, source)
	if len(links) == 0 {
		s.logger.Warn().Str("source", source.Name).Msg("No postings discovered, nothing to reconcile")
		return nil
	}

	observed := s.deriveCodes(source, links)

	stored, err := s.storage.ListBySource(ctx, source.IssuingBody, source.PostingType)
	if err != nil {
		return fmt.Errorf("failed to load stored postings: %w", err)
	}
	storedByCode := make(map[string]*models.Posting, len(stored))
	for _, p := range stored {
		storedByCode[p.Code] = p
	}

	delay := rate.Inf
	if d := common.ParseDurationOr(s.config.PostingDelay, 2*time.Second); d > 0 {
		delay = rate.Every(d)
	}

	r := &run{
		source:    source,
		mode:      mode,
		session:   session,
		extractor: extractor,
		limiter:   rate.NewLimiter(delay, 1),
		result:    result,
	}

	for i, obs := range observed {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.logger.Debug().
			Int("index", i+1).
			Int("total", len(observed)).
			Str("code", obs.code).
			Str("url", obs.link.URL).
			Msg("Processing posting")

		result.ProcessedCount++
		if err := s.processPosting(ctx, r, obs, storedByCode[obs.code]); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			result.FailedCount++
			s.logger.Warn().Err(err).Str("code", obs.code).Str("url", obs.link.URL).Msg("Posting failed, continuing")
		}
	}

	if len(r.touched) > 0 {
		if err := s.storage.TouchChecked(ctx, r.touched, s.now()); err != nil {
			s.logger.Warn().Err(err).Int("count", len(r.touched)).Msg("Failed to update last checked time")
		}
	}

	s.countRemoved(observed, stored, result)
	return nil
}

// deriveCodes keys each link; links without a key are skipped and later
// duplicates of a key are dropped.
func (s *Service) deriveCodes(source *models.Source, links []models.ListingLink) []observedLink {
	observed := make([]observedLink, 0, len(links))
	seen := make(map[string]struct{}, len(links))
	for _, link := range links {
		code, ok := source.DeriveCode(link.URL)
		if !ok {
			s.logger.Debug().Str("url", link.URL).Msg("No business key in link, skipping")
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		observed = append(observed, observedLink{code: code, link: link})
	}
	return observed
}

// countRemoved counts active stored postings that were not observed. They stay active.
func (s *Service) countRemoved(observed []observedLink, stored []*models.Posting, result *models.RunResult) {
	seen := make(map[string]struct{}, len(observed))
	for _, obs := range observed {
		seen[obs.code] = struct{}{}
	}

	var missing []string
	for _, p := range stored {
		if !p.IsActive {
			continue
		}
		if _, ok := seen[p.Code]; !ok {
			missing = append(missing, p.Code)
		}
	}

	result.RemovedCount = len(missing)
	if len(missing) > 0 {
		s.logger.Info().
			Str("source", result.Source).
			Strs("codes", missing).
			Msg("Stored postings no longer listed")
	}
}

// processPosting classifies one observed posting and acts on the outcome
func (s *Service) processPosting(ctx context.Context, r *run, obs observedLink, existing *models.Posting) error {
	if existing == nil {
		return s.visit(ctx, r, obs, nil)
	}

	if r.mode == models.RunModeFull {
		return s.visit(ctx, r, obs, existing)
	}

	if common.PageEndingsDiffer(existing.PageURL, obs.link.URL) || s.config.VerifyDocuments {
		return s.visit(ctx, r, obs, existing)
	}

	s.markUnchanged(r, obs.code)
	return nil
}

func (s *Service) markUnchanged(r *run, code string) {
	r.result.UnchangedCount++
	r.touched = append(r.touched, code)
}

// visit resolves the posting page and, when the posting is new, amended or a
// full run is in progress, extracts and persists it.
func (s *Service) visit(ctx context.Context, r *run, obs observedLink, existing *models.Posting) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	info, err := r.session.Resolve(ctx, obs.link.URL, r.source.DocumentSelector)
	if err != nil {
		if existing != nil && !common.PageEndingsDiffer(existing.PageURL, obs.link.URL) {
			s.logger.Warn().
				Err(err).
				Str("code", obs.code).
				Msg("Page resolution failed, page ending unchanged so treating posting as unchanged")
			s.markUnchanged(r, obs.code)
			return nil
		}
		return fmt.Errorf("failed to resolve posting page: %w", err)
	}

	amended := false
	if existing != nil {
		fp := common.CompareFingerprints(existing.PageURL, existing.DocumentURL, info.PageURL, info.DocumentURL)
		amended = fp.Amended()
		if fp.Degraded {
			s.logger.Debug().Str("code", obs.code).Msg("Document URL missing, compared page endings only")
		}
		if !amended && r.mode != models.RunModeFull {
			s.markUnchanged(r, obs.code)
			return nil
		}
	}

	fields, err := s.extract(ctx, r, obs, info)
	if err != nil {
		return err
	}

	return s.persist(ctx, r, &observation{
		code:    obs.code,
		source:  r.source,
		info:    info,
		fields:  fields,
		amended: amended,
	})
}

// extract downloads the posting document and runs field extraction. A posting
// without a document is extracted from its page title alone.
func (s *Service) extract(ctx context.Context, r *run, obs observedLink, info *models.PageInfo) (models.FieldMap, error) {
	input := interfaces.ExtractionInput{
		Code:      obs.code,
		PageURL:   info.PageURL,
		PageTitle: info.PageTitle,
	}

	if info.DocumentURL == nil {
		s.logger.Warn().Str("code", obs.code).Msg("No document found on posting page")
		return r.extractor.Extract(ctx, input), nil
	}
	input.DocumentURL = *info.DocumentURL

	body, err := fetcher.FetchWithRetry(ctx, s.retry, s.documents, *info.DocumentURL, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to download document: %w", err)
	}

	text, err := s.text.ExtractText(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("failed to extract document text: %w", err)
	}
	input.Text = text

	return r.extractor.Extract(ctx, input), nil
}

// persist writes the observation in one transaction and records the outcome
func (s *Service) persist(ctx context.Context, r *run, obs *observation) error {
	now := s.now()
	inserted := false

	posting, err := s.storage.Upsert(ctx, obs.code, func(stored *models.Posting) (*models.Posting, error) {
		if stored == nil {
			inserted = true
			return newPosting(obs, now), nil
		}
		inserted = false
		return mergePosting(stored, obs, now), nil
	})
	if err != nil {
		return fmt.Errorf("failed to save posting: %w", err)
	}

	switch {
	case inserted:
		r.result.New = append(r.result.New, posting)
		s.logger.Info().Str("code", posting.Code).Str("name", posting.DisplayName()).Msg("New posting")
	case obs.amended:
		r.result.Amendments = append(r.result.Amendments, posting)
		s.logger.Info().
			Str("code", posting.Code).
			Int("amendment_count", posting.AmendmentCount).
			Str("changed_fields", strings.Join(posting.LastChangedFields, ",")).
			Msg("Amended posting")
	default:
		r.result.UnchangedCount++
		s.logger.Debug().Str("code", posting.Code).Int("update_count", posting.UpdateCount).Msg("Posting refreshed")
	}
	return nil
}
