package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

const listingHTML = `<html><head><title>Contracting</title></head><body>
<a href="/opportunities/contracting/ifib-act-sact-25-97/">IFIB-ACT-SACT-25-97 Cyber Range</a>
<a href="https://www.act.nato.int/opportunities/contracting/ifib-act-sact-25-97/">Duplicate</a>
<a href="/opportunities/contracting/ifib-act-sact-25-98/"> </a>
<a href="/opportunities/contracting/noi-act-sact-26-16/">NOI-ACT-SACT-26-16</a>
<a href="/opportunities/contracting/ifib-act-sact-25-99/#top">IFIB   ACT
 SACT 25 99</a>
<a href="mailto:contracting@act.nato.int">Mail</a>
<a href="javascript:void(0)">ifib</a>
<a href="/opportunities/contracting/ifib-act-sact-25-97/docs/file">Nested</a>
</body></html>`

func ifibSource(t *testing.T) *models.Source {
	t.Helper()
	for _, s := range models.DefaultSources() {
		if s.PostingType == models.PostingTypeIFIB {
			require.NoError(t, s.Compile())
			return s
		}
	}
	t.Fatal("no IFIB source")
	return nil
}

func TestExtractListingLinks(t *testing.T) {
	source := ifibSource(t)

	links, err := ExtractListingLinks(listingHTML, source.ListingURL, source)
	require.NoError(t, err)

	require.Len(t, links, 2)
	assert.Equal(t, "https://www.act.nato.int/opportunities/contracting/ifib-act-sact-25-97/", links[0].URL)
	assert.Equal(t, "IFIB-ACT-SACT-25-97 Cyber Range", links[0].Text)
	assert.Equal(t, "https://www.act.nato.int/opportunities/contracting/ifib-act-sact-25-99/", links[1].URL)
	assert.Equal(t, "IFIB ACT SACT 25 99", links[1].Text)
}

func TestFindDocumentLink(t *testing.T) {
	pageURL := "https://www.act.nato.int/opportunities/contracting/ifib-act-sact-25-97/"

	tests := []struct {
		name     string
		html     string
		selector string
		want     *string
	}{
		{
			name: "selector match wins",
			html: `<a href="/other.pdf">Other</a>
<a target="_blank" rel="noopener" href="/notes.html">Notes</a>
<a target="_blank" rel="noopener" href="/wp-content/uploads/IFIB-25-97.pdf">Download</a>`,
			selector: models.DefaultDocumentSelector,
			want:     strPtr("https://www.act.nato.int/wp-content/uploads/IFIB-25-97.pdf"),
		},
		{
			name:     "fallback to any pdf anchor",
			html:     `<a href="notes.html">Notes</a><a href="files/Amendment-1.PDF?v=2">Amendment</a>`,
			selector: models.DefaultDocumentSelector,
			want:     strPtr("https://www.act.nato.int/opportunities/contracting/ifib-act-sact-25-97/files/Amendment-1.PDF?v=2"),
		},
		{
			name:     "no document",
			html:     `<a href="/contact">Contact</a>`,
			selector: models.DefaultDocumentSelector,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindDocumentLink(tt.html, pageURL, tt.selector)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func strPtr(s string) *string { return &s }

type fakeSession struct {
	pages  map[string]*models.RenderedPage
	closed bool
}

func (f *fakeSession) Render(ctx context.Context, pageURL string, timeout time.Duration) (*models.RenderedPage, error) {
	if p, ok := f.pages[pageURL]; ok {
		return p, nil
	}
	return nil, errors.New("navigation timeout")
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func TestClient_DiscoverAndResolve(t *testing.T) {
	source := ifibSource(t)
	pageURL := "https://www.act.nato.int/opportunities/contracting/ifib-act-sact-25-97/"

	session := &fakeSession{pages: map[string]*models.RenderedPage{
		source.ListingURL: {URL: source.ListingURL, HTML: listingHTML},
		pageURL: {
			URL:   pageURL,
			Title: "IFIB-ACT-SACT-25-97 | NATO's ACT",
			HTML:  `<a target="_blank" rel="noopener" href="/uploads/IFIB-ACT-SACT-25-97.pdf">PDF</a>`,
		},
	}}
	cfg := common.NewDefaultConfig().Browser
	client := NewClient(session, &cfg, arbor.NewLogger())
	ctx := context.Background()

	links := client.Discover(ctx, source)
	assert.Len(t, links, 2)

	info, err := client.Resolve(ctx, pageURL, source.DocumentSelector)
	require.NoError(t, err)
	assert.Equal(t, "IFIB-ACT-SACT-25-97 | NATO's ACT", info.PageTitle)
	require.NotNil(t, info.DocumentURL)
	assert.Equal(t, "https://www.act.nato.int/uploads/IFIB-ACT-SACT-25-97.pdf", *info.DocumentURL)

	_, err = client.Resolve(ctx, "https://www.act.nato.int/missing/", source.DocumentSelector)
	assert.Error(t, err)

	require.NoError(t, client.Close())
	assert.True(t, session.closed)
}

func TestClient_DiscoverFailureIsEmpty(t *testing.T) {
	source := ifibSource(t)
	cfg := common.NewDefaultConfig().Browser
	client := NewClient(&fakeSession{}, &cfg, arbor.NewLogger())

	links := client.Discover(context.Background(), source)
	assert.NotNil(t, links)
	assert.Empty(t, links)
}
