package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// StatusError is returned by Navigate when the server answers with a 4xx/5xx.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("page load failed with status %d: %s", e.Status, e.URL)
}

var ErrNoResponse = errors.New("navigation returned no response")

type Options struct {
	Headless          bool
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	AcceptLanguage    string
	Locale            string
	ProxyServer       string
	ExtraHeaders      map[string]string
	// BlockedResources are aborted before they hit the network.
	BlockedResources []string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:          true,
		NavigationTimeout: 45 * time.Second,
		ActionTimeout:     10 * time.Second,
		UserAgent:         DefaultUserAgent,
		ViewportWidth:     1366,
		ViewportHeight:    768,
		AcceptLanguage:    "en-US,en;q=0.9,ar;q=0.8",
		Locale:            "en-US",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		},
		BlockedResources: []string{"image", "stylesheet", "font"},
	}
}

// Launcher owns the playwright driver. Every Launch starts a fresh browser
// process so concurrent scrapes share no cookies, cache or pages.
type Launcher struct {
	pw     *playwright.Playwright
	opts   *Options
	logger *slog.Logger
}

func NewLauncher(opts *Options) (*Launcher, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	return &Launcher{
		pw:     pw,
		opts:   opts,
		logger: slog.Default().With("component", "browser"),
	}, nil
}

func (l *Launcher) Close() error {
	if l.pw == nil {
		return nil
	}
	if err := l.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

// Session is one browser process with a single page.
type Session struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	opts    *Options
	logger  *slog.Logger
}

// Launch starts a browser with resource blocking already installed.
func (l *Launcher) Launch(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := l.opts

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	}
	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: opts.ProxyServer}
	}

	browser, err := l.pw.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	headers := make(map[string]string, len(opts.ExtraHeaders)+1)
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}
	if opts.AcceptLanguage != "" {
		headers["Accept-Language"] = opts.AcceptLanguage
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(opts.UserAgent),
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            playwright.String(opts.Locale),
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	page.SetDefaultTimeout(float64(opts.ActionTimeout.Milliseconds()))
	page.SetDefaultNavigationTimeout(float64(opts.NavigationTimeout.Milliseconds()))

	s := &Session{
		browser: browser,
		context: bctx,
		page:    page,
		opts:    opts,
		logger:  l.logger,
	}

	if err := s.blockResources(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func (s *Session) blockResources() error {
	if len(s.opts.BlockedResources) == 0 {
		return nil
	}
	blocked := make(map[string]bool, len(s.opts.BlockedResources))
	for _, r := range s.opts.BlockedResources {
		blocked[r] = true
	}

	err := s.page.Route("**/*", func(route playwright.Route) {
		if blocked[route.Request().ResourceType()] {
			if err := route.Abort(); err != nil {
				s.logger.Debug("failed to abort request", "error", err)
			}
			return
		}
		if err := route.Continue(); err != nil {
			s.logger.Debug("failed to continue request", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to install request routing: %w", err)
	}
	return nil
}

// Navigate performs one page load. A 4xx/5xx answer is a *StatusError.
func (s *Session) Navigate(url string) error {
	resp, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.opts.NavigationTimeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	if resp == nil {
		return ErrNoResponse
	}
	if resp.Status() >= 400 {
		return &StatusError{URL: url, Status: resp.Status()}
	}
	return nil
}

// WaitFor blocks until an element matching selector is attached or the
// timeout passes.
func (s *Session) WaitFor(selector string, timeout time.Duration) error {
	return s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (s *Session) Page() playwright.Page {
	return s.page
}

func (s *Session) Close() error {
	var errs []error

	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	return errors.Join(errs...)
}
