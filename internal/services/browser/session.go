// -----------------------------------------------------------------------
// Headless Chrome sessions for listing and posting pages
// -----------------------------------------------------------------------

package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/interfaces"
	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// Factory starts one Chrome instance per session
type Factory struct {
	config *common.BrowserConfig
	logger arbor.ILogger
}

var _ interfaces.BrowserFactory = (*Factory)(nil)

// NewFactory creates a browser session factory
func NewFactory(config *common.BrowserConfig, logger arbor.ILogger) *Factory {
	return &Factory{config: config, logger: logger}
}

// allocatorOptions builds the Chrome flags for a session
func allocatorOptions(config *common.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(config.UserAgent),
	)
	if config.DisableBlinkAutoID {
		opts = append(opts, chromedp.Flag("disable-blink-features", "AutomationControlled"))
	}
	if config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(config.ExecPath))
	}
	return opts
}

// NewSession launches a browser and verifies it responds
func (f *Factory) NewSession(ctx context.Context) (interfaces.BrowserSession, error) {
	startTime := time.Now()

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(f.config)...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	startCtx, startCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer startCancel()
	stop := context.AfterFunc(ctx, startCancel)
	defer stop()

	if err := chromedp.Run(startCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	f.logger.Debug().
		Bool("headless", f.config.Headless).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser session started")

	return &Session{
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
		config:          f.config,
		settleWait:      common.ParseDurationOr(f.config.SettleWait, 5*time.Second),
		logger:          f.logger,
	}, nil
}

// Session owns one Chrome instance. Pages are rendered one at a time, each in
// its own browser context so cookies, storage and cache never carry over
// between renders.
type Session struct {
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	config          *common.BrowserConfig
	settleWait      time.Duration
	logger          arbor.ILogger

	mu     sync.Mutex
	closed bool
}

// Render navigates to pageURL, waits for client-side rendering and returns the DOM
func (s *Session) Render(ctx context.Context, pageURL string, timeout time.Duration) (*models.RenderedPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("browser session closed")
	}

	// Cancelling the tab disposes its browser context
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx, chromedp.WithNewBrowserContext())
	defer tabCancel()

	runCtx, runCancel := context.WithTimeout(tabCtx, timeout+s.settleWait)
	defer runCancel()
	stop := context.AfterFunc(ctx, runCancel)
	defer stop()

	headers := network.Headers{}
	if s.config.AcceptLanguage != "" {
		headers["Accept-Language"] = s.config.AcceptLanguage
	}

	var title, html string
	err := chromedp.Run(runCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		chromedp.Navigate(pageURL),
		chromedp.Sleep(s.settleWait),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", pageURL, err)
	}

	return &models.RenderedPage{URL: pageURL, Title: title, HTML: html}, nil
}

// Close shuts the browser down
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.browserCancel()
	s.allocatorCancel()
	s.logger.Debug().Msg("Browser session closed")
	return nil
}
