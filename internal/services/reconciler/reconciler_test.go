package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/interfaces"
	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/Geldren1/nato-website-2/internal/services/fetcher"
	"github.com/Geldren1/nato-website-2/internal/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

const (
	listingURL = "https://www.act.nato.int/opportunities/contracting/"
	page97     = "https://www.act.nato.int/opportunities/contracting/ifib-act-sact-25-97/"
	page98     = "https://www.act.nato.int/opportunities/contracting/ifib-act-sact-25-98/"
	doc97      = "https://www.act.nato.int/wp-content/uploads/2025/10/IFIB-ACT-SACT-25-97.pdf"
	doc97Amd   = "https://www.act.nato.int/wp-content/uploads/2025/11/IFIB-ACT-SACT-25-97-Amendment-1.pdf"
	doc98      = "https://www.act.nato.int/wp-content/uploads/2025/10/IFIB-ACT-SACT-25-98.pdf"
)

// ----- fakes -----

type fakeSite struct {
	links       []models.ListingLink
	pages       map[string]*models.PageInfo
	resolveErrs map[string]error
	resolved    []string
	closed      int
}

func (f *fakeSite) Open(ctx context.Context) (interfaces.PageSession, error) {
	return f, nil
}

func (f *fakeSite) Discover(ctx context.Context, source *models.Source) []models.ListingLink {
	return f.links
}

func (f *fakeSite) Resolve(ctx context.Context, pageURL string, selector string) (*models.PageInfo, error) {
	f.resolved = append(f.resolved, pageURL)
	if err := f.resolveErrs[pageURL]; err != nil {
		return nil, err
	}
	info, ok := f.pages[pageURL]
	if !ok {
		return nil, errors.New("navigation timeout")
	}
	copied := *info
	return &copied, nil
}

func (f *fakeSite) Close() error {
	f.closed++
	return nil
}

func (f *fakeSite) publish(pageURL string, documentURL *string, title string) {
	f.links = append(f.links, models.ListingLink{URL: pageURL, Text: title})
	f.pages[pageURL] = &models.PageInfo{PageURL: pageURL, DocumentURL: documentURL, PageTitle: title}
}

// fakeDocuments serves the document URL itself as the body
type fakeDocuments struct {
	fail map[string]bool
}

func (f *fakeDocuments) Fetch(ctx context.Context, documentURL string) ([]byte, error) {
	if f.fail[documentURL] {
		return nil, errors.New("connection reset")
	}
	return []byte(documentURL), nil
}

type fakeText struct{}

func (fakeText) ExtractText(ctx context.Context, document []byte) (string, error) {
	return "--- PAGE 1 ---\n" + string(document), nil
}

// fakeExtractor returns canned fields per document URL
type fakeExtractor struct {
	fields map[string]models.FieldMap
	inputs []interfaces.ExtractionInput
	panics bool
}

func (f *fakeExtractor) PostingType() models.PostingType { return models.PostingTypeIFIB }
func (f *fakeExtractor) TargetFields() []string          { return []string{models.FieldName} }

func (f *fakeExtractor) Extract(ctx context.Context, input interfaces.ExtractionInput) models.FieldMap {
	if f.panics {
		panic("extractor exploded")
	}
	f.inputs = append(f.inputs, input)
	out := models.FieldMap{}
	for k, v := range f.fields[input.DocumentURL] {
		out[k] = v
	}
	if _, ok := out[models.FieldName]; !ok && input.PageTitle != "" {
		out[models.FieldName] = input.PageTitle
	}
	return out
}

// ----- harness -----

type harness struct {
	service   *Service
	storage   *badger.PostingStorage
	site      *fakeSite
	documents *fakeDocuments
	extractor *fakeExtractor
	source    *models.Source
	config    *common.ReconcilerConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := arbor.NewLogger()

	db, err := badger.NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	storage := badger.NewPostingStorage(db, logger)
	t.Cleanup(func() { storage.Close() })

	h := &harness{
		storage:   storage,
		site:      &fakeSite{pages: map[string]*models.PageInfo{}, resolveErrs: map[string]error{}},
		documents: &fakeDocuments{fail: map[string]bool{}},
		extractor: &fakeExtractor{fields: map[string]models.FieldMap{}},
		source:    models.DefaultSources()[0],
		config:    &common.ReconcilerConfig{PostingDelay: "0s", VerifyDocuments: true},
	}
	require.NoError(t, h.source.Compile())

	retry := fetcher.NewRetryPolicy(&common.FetcherConfig{MaxAttempts: 1, InitialBackoff: "1ms", MaxBackoff: "1ms"})
	h.service = NewService(storage, h.site, h.documents, retry, fakeText{},
		func(models.PostingType) (interfaces.FieldExtractor, error) { return h.extractor, nil },
		h.config, logger)
	return h
}

func (h *harness) run(t *testing.T, mode models.RunMode) *models.RunResult {
	t.Helper()
	result := h.service.Run(context.Background(), h.source, mode)
	require.NotNil(t, result)
	return result
}

func (h *harness) get(t *testing.T, code string) *models.Posting {
	t.Helper()
	p, err := h.storage.GetByCode(context.Background(), code)
	require.NoError(t, err)
	return p
}

func strPtr(s string) *string { return &s }

// ----- tests -----

func TestRun_InsertsNewPosting(t *testing.T) {
	h := newHarness(t)
	h.site.publish(page97, strPtr(doc97), "IFIB-ACT-SACT-25-97 Cloud Services")
	h.extractor.fields[doc97] = models.FieldMap{
		models.FieldName:           "Cloud Services",
		models.FieldBidClosingDate: "15 November 2025 at 14:00 CET",
	}

	result := h.run(t, models.RunModeIncremental)

	assert.True(t, result.Success)
	assert.Nil(t, result.Error)
	require.Len(t, result.New, 1)
	assert.Empty(t, result.Amendments)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 1, h.site.closed)

	p := h.get(t, "IFIB-ACT-SACT-25-97")
	assert.True(t, p.IsActive)
	assert.Equal(t, 0, p.AmendmentCount)
	assert.Equal(t, 0, p.UpdateCount)
	assert.False(t, p.HasAmendments)
	assert.Equal(t, models.PostingTypeIFIB, p.PostingType)
	assert.Equal(t, "ACT", p.IssuingBody)
	assert.Equal(t, listingURL, p.SourceListingURL)
	assert.Equal(t, "Cloud Services", *p.Name)
	require.NotNil(t, p.BidClosingDateParsed)
	assert.Equal(t, time.Date(2025, time.November, 15, 14, 0, 0, 0, time.UTC), p.BidClosingDateParsed.UTC())
	assert.NotEmpty(t, p.ContentHash)
	assert.Contains(t, h.extractor.inputs[0].Text, doc97)
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.site.publish(page97, strPtr(doc97), "Cloud Services")
	h.extractor.fields[doc97] = models.FieldMap{models.FieldBidClosingDate: "15 November 2025"}

	first := h.run(t, models.RunModeIncremental)
	require.Len(t, first.New, 1)
	before := h.get(t, "IFIB-ACT-SACT-25-97")

	second := h.run(t, models.RunModeIncremental)
	assert.True(t, second.Success)
	assert.Empty(t, second.New)
	assert.Empty(t, second.Amendments)
	assert.Equal(t, 1, second.UnchangedCount)
	assert.Len(t, h.extractor.inputs, 1, "unchanged postings are not re-extracted")

	after := h.get(t, "IFIB-ACT-SACT-25-97")
	assert.Equal(t, before.ContentHash, after.ContentHash)
	assert.Equal(t, 0, after.AmendmentCount)
	assert.Equal(t, 0, after.UpdateCount)

	count, err := h.storage.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRun_DocumentChangeIsAmendment(t *testing.T) {
	h := newHarness(t)
	h.site.publish(page97, strPtr(doc97), "Cloud Services")
	h.extractor.fields[doc97] = models.FieldMap{models.FieldBidClosingDate: "15 November 2025"}
	h.run(t, models.RunModeIncremental)

	h.site.pages[page97].DocumentURL = strPtr(doc97Amd)
	h.extractor.fields[doc97Amd] = models.FieldMap{models.FieldBidClosingDate: "29 November 2025"}

	result := h.run(t, models.RunModeIncremental)
	assert.True(t, result.Success)
	require.Len(t, result.Amendments, 1)
	assert.Empty(t, result.New)

	p := h.get(t, "IFIB-ACT-SACT-25-97")
	assert.Equal(t, 1, p.AmendmentCount)
	assert.True(t, p.HasAmendments)
	assert.NotNil(t, p.LastAmendmentAt)
	assert.Equal(t, "29 November 2025", *p.BidClosingDate)
	assert.Equal(t, doc97Amd, *p.DocumentURL)
	assert.Equal(t, 1, p.UpdateCount)
	assert.Contains(t, p.LastChangedFields, models.FieldBidClosingDate)
}

func TestRun_PageEndingChangeIsAmendment(t *testing.T) {
	h := newHarness(t)
	h.site.publish(page97, strPtr(doc97), "Cloud Services")
	h.run(t, models.RunModeIncremental)

	// Same business key, new slug
	moved := "https://www.act.nato.int/opportunities/contracting/ifib-act-sact-25-97-amendment-1/"
	h.site.links = nil
	h.site.publish(moved, strPtr(doc97), "Cloud Services")

	result := h.run(t, models.RunModeIncremental)
	require.Len(t, result.Amendments, 1)
	p := h.get(t, "IFIB-ACT-SACT-25-97")
	assert.Equal(t, 1, p.AmendmentCount)
	assert.Equal(t, moved, p.PageURL)
}

func TestRun_FullModeContentOnlyChange(t *testing.T) {
	h := newHarness(t)
	h.site.publish(page97, strPtr(doc97), "Cloud Services")
	h.extractor.fields[doc97] = models.FieldMap{models.FieldBidClosingDate: "15 November 2025"}
	h.run(t, models.RunModeIncremental)

	h.extractor.fields[doc97] = models.FieldMap{
		models.FieldBidClosingDate:        "15 November 2025",
		models.FieldClarificationDeadline: "1 November 2025",
	}

	result := h.run(t, models.RunModeFull)
	assert.True(t, result.Success)
	assert.Empty(t, result.Amendments)
	assert.Empty(t, result.New)
	assert.Equal(t, 1, result.UnchangedCount)

	p := h.get(t, "IFIB-ACT-SACT-25-97")
	assert.Equal(t, 0, p.AmendmentCount)
	assert.Equal(t, 1, p.UpdateCount)
	assert.NotNil(t, p.LastContentUpdate)
	assert.Equal(t, []string{models.FieldClarificationDeadline}, p.LastChangedFields)
	assert.Equal(t, "15 November 2025", *p.BidClosingDate)
}

func TestRun_NullsNeverErase(t *testing.T) {
	h := newHarness(t)
	h.site.publish(page97, strPtr(doc97), "Cloud Services")
	h.extractor.fields[doc97] = models.FieldMap{models.FieldBidClosingDate: "15 November 2025"}
	h.run(t, models.RunModeIncremental)

	h.extractor.fields[doc97] = models.FieldMap{}
	result := h.run(t, models.RunModeFull)
	assert.True(t, result.Success)

	p := h.get(t, "IFIB-ACT-SACT-25-97")
	require.NotNil(t, p.BidClosingDate)
	assert.Equal(t, "15 November 2025", *p.BidClosingDate)
	assert.Equal(t, 0, p.UpdateCount)
}

func TestRun_NotObservedCountedNotDeactivated(t *testing.T) {
	h := newHarness(t)
	h.site.publish(page97, strPtr(doc97), "Cloud Services")
	h.site.publish(page98, strPtr(doc98), "Data Fabric")
	h.run(t, models.RunModeIncremental)

	h.site.links = h.site.links[:1]
	result := h.run(t, models.RunModeIncremental)
	assert.Equal(t, 1, result.RemovedCount)

	p := h.get(t, "IFIB-ACT-SACT-25-98")
	assert.True(t, p.IsActive)
	assert.Nil(t, p.RemovedAt)
}

func TestRun_PostingFailuresDoNotStopRun(t *testing.T) {
	h := newHarness(t)
	h.site.publish(page97, strPtr(doc97), "Cloud Services")
	h.site.publish(page98, strPtr(doc98), "Data Fabric")
	h.site.resolveErrs[page97] = errors.New("navigation timeout")

	result := h.run(t, models.RunModeIncremental)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.New, 1)
	assert.Equal(t, "IFIB-ACT-SACT-25-98", result.New[0].Code)

	// Download failures skip the posting too
	h.site.resolveErrs = map[string]error{}
	h.documents.fail[doc97] = true
	result = h.run(t, models.RunModeIncremental)
	assert.Equal(t, 1, result.FailedCount)
	_, err := h.storage.GetByCode(context.Background(), "IFIB-ACT-SACT-25-97")
	assert.True(t, errors.Is(err, interfaces.ErrPostingNotFound))
}

func TestRun_ResolveFailureWithSameEndingIsUnchanged(t *testing.T) {
	h := newHarness(t)
	h.site.publish(page97, strPtr(doc97), "Cloud Services")
	h.run(t, models.RunModeIncremental)

	h.site.resolveErrs[page97] = errors.New("navigation timeout")
	result := h.run(t, models.RunModeIncremental)
	assert.Equal(t, 0, result.FailedCount)
	assert.Equal(t, 1, result.UnchangedCount)
}

func TestRun_WithoutVerificationSkipsPageVisits(t *testing.T) {
	h := newHarness(t)
	h.site.publish(page97, strPtr(doc97), "Cloud Services")
	h.run(t, models.RunModeIncremental)
	require.Len(t, h.site.resolved, 1)

	h.config.VerifyDocuments = false
	result := h.run(t, models.RunModeIncremental)
	assert.Equal(t, 1, result.UnchangedCount)
	assert.Len(t, h.site.resolved, 1)

	p := h.get(t, "IFIB-ACT-SACT-25-97")
	assert.NotNil(t, p.LastCheckedAt)
}

func TestRun_MissingDocumentUsesPageTitle(t *testing.T) {
	h := newHarness(t)
	h.site.publish(page97, nil, "Cloud Services")

	result := h.run(t, models.RunModeIncremental)
	require.Len(t, result.New, 1)
	require.Len(t, h.extractor.inputs, 1)
	assert.Empty(t, h.extractor.inputs[0].Text)
	assert.Nil(t, result.New[0].DocumentURL)
	assert.Equal(t, "Cloud Services", *result.New[0].Name)
}

func TestRun_PanicIsRecordedInResult(t *testing.T) {
	h := newHarness(t)
	h.site.publish(page97, strPtr(doc97), "Cloud Services")
	h.extractor.panics = true

	result := h.run(t, models.RunModeIncremental)
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Contains(t, *result.Error, "extractor exploded")
	assert.NotNil(t, result.New)
	assert.False(t, result.EndTime.IsZero())
	assert.Equal(t, 1, h.site.closed, "browser session is closed on panic")
}

func TestRun_SkipsLinksWithoutKey(t *testing.T) {
	h := newHarness(t)
	h.site.publish("https://www.act.nato.int/opportunities/contracting/ifib-guidance/", nil, "Guidance")

	result := h.run(t, models.RunModeIncremental)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.Empty(t, h.site.resolved)
}
