package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/interfaces"
	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/ternarybob/arbor"
)

// Factory opens a browser-backed discovery client for each run
type Factory struct {
	browsers interfaces.BrowserFactory
	config   *common.BrowserConfig
	logger   arbor.ILogger
}

var _ interfaces.PageSessionFactory = (*Factory)(nil)

// NewFactory creates a discovery client factory
func NewFactory(browsers interfaces.BrowserFactory, config *common.BrowserConfig, logger arbor.ILogger) *Factory {
	return &Factory{browsers: browsers, config: config, logger: logger}
}

// Open starts a browser session owned by the caller
func (f *Factory) Open(ctx context.Context) (interfaces.PageSession, error) {
	session, err := f.browsers.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}
	return NewClient(session, f.config, f.logger), nil
}

// Client discovers listing links and resolves posting pages over one browser session
type Client struct {
	session        interfaces.BrowserSession
	listingTimeout time.Duration
	pageTimeout    time.Duration
	logger         arbor.ILogger
}

var _ interfaces.PageSession = (*Client)(nil)

// NewClient wraps a browser session
func NewClient(session interfaces.BrowserSession, config *common.BrowserConfig, logger arbor.ILogger) *Client {
	return &Client{
		session:        session,
		listingTimeout: common.ParseDurationOr(config.ListingTimeout, 60*time.Second),
		pageTimeout:    common.ParseDurationOr(config.PageTimeout, 30*time.Second),
		logger:         logger,
	}
}

// Discover renders the listing page of source and returns its posting links.
// Any failure yields an empty result.
func (c *Client) Discover(ctx context.Context, source *models.Source) []models.ListingLink {
	page, err := c.session.Render(ctx, source.ListingURL, c.listingTimeout)
	if err != nil {
		c.logger.Warn().Err(err).Str("source", source.Name).Str("url", source.ListingURL).Msg("Listing page could not be rendered")
		return []models.ListingLink{}
	}

	links, err := ExtractListingLinks(page.HTML, source.ListingURL, source)
	if err != nil {
		c.logger.Warn().Err(err).Str("source", source.Name).Msg("Listing page could not be parsed")
		return []models.ListingLink{}
	}

	c.logger.Info().
		Str("source", source.Name).
		Int("links", len(links)).
		Msg("Listing discovered")

	if links == nil {
		links = []models.ListingLink{}
	}
	return links
}

// Resolve visits a posting page and returns its title and document link
func (c *Client) Resolve(ctx context.Context, pageURL string, documentSelector string) (*models.PageInfo, error) {
	page, err := c.session.Render(ctx, pageURL, c.pageTimeout)
	if err != nil {
		return nil, err
	}

	documentURL, err := FindDocumentLink(page.HTML, pageURL, documentSelector)
	if err != nil {
		return nil, err
	}

	title := page.Title
	if title == "" {
		title = PageTitle(page.HTML)
	}

	if documentURL == nil {
		c.logger.Debug().Str("url", pageURL).Msg("No document link found on posting page")
	}

	return &models.PageInfo{
		PageURL:     pageURL,
		DocumentURL: documentURL,
		PageTitle:   title,
	}, nil
}

// Close releases the browser session
func (c *Client) Close() error {
	return c.session.Close()
}
