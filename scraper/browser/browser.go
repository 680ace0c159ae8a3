// Package browser is the chromedp-backed session: one long-lived tab that
// navigates, scrolls until the review list stops growing, and hands back the
// rendered HTML.
package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"review-scraper/config"
	"review-scraper/models"
	"review-scraper/scraper"
	"review-scraper/scraper/scroll"
	"review-scraper/utils"
)

// Browser is a scraper.Session over a single Chrome tab.
type Browser struct {
	cfg    *config.Config
	logger *utils.Logger
	driver *scroll.Driver
	probe  scroll.Probe

	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// Open starts Chrome and its tab. Close must be called to release them.
func Open(cfg *config.Config, logger *utils.Logger) (*Browser, error) {
	chromeBin := findChromeBinary(cfg.ChromeBin)
	logger.Info("[browser] Using browser binary: %s", orDefault(chromeBin, "<chromedp default>"))

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	// Suppress chromedp log noise
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("browser: start: %w", err)
	}

	return &Browser{
		cfg:    cfg,
		logger: logger,
		driver: &scroll.Driver{
			MaxRounds: cfg.MaxScroll,
			Delay:     cfg.ScrollDelay(),
			Logger:    logger,
		},
		probe:       newProbe(cfg),
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}, nil
}

// Run executes actions on the tab. It stops when ctx is done or, if timeout
// is positive, when the timeout expires.
func (b *Browser) Run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := b.bind(ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}
	return chromedp.Run(runCtx, actions...)
}

// bind derives a context from the tab that is also cancelled with ctx.
func (b *Browser) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(b.tabCtx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// Load navigates to url, waits for the page to settle, paginates, and
// returns the rendered document.
func (b *Browser) Load(ctx context.Context, url string) (*models.Page, error) {
	if err := b.Run(ctx, b.cfg.NavTimeout(), chromedp.Navigate(url)); err != nil {
		return nil, &scraper.NavigationError{URL: url, Err: err}
	}

	runCtx, cancel := b.bind(ctx)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Sleep(b.cfg.SettleDelay())); err != nil {
		return nil, &scraper.NavigationError{URL: url, Err: err}
	}

	res, err := b.driver.Run(runCtx, b.probe)
	if err != nil {
		return nil, &scraper.ExtractionError{URL: url, Err: err}
	}
	b.logger.Debug("[browser] %s: %d scroll rounds, signal %d (capped=%v)", url, res.Rounds, res.Final, res.Capped)

	var html, location string
	if err := chromedp.Run(runCtx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, &scraper.ExtractionError{URL: url, Err: err}
	}

	if location == "" {
		location = url
	}
	return &models.Page{URL: location, HTML: html}, nil
}

// Close shuts the tab and the browser process.
func (b *Browser) Close() error {
	b.cancelTab()
	b.cancelAlloc()
	return nil
}

func findChromeBinary(override string) string {
	if override != "" {
		return override
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
