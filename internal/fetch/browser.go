package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"
)

type BrowserConfig struct {
	WaitSelector string
	Timeout      time.Duration
	UserAgent    string
	// Page loads per second. Zero disables limiting.
	Rate         float64
}

// BrowserFetcher loads pages in a headless Chrome so client side rendered
// listings are present before the document is read.
//
// One browser process, started by [NewBrowser], backs every fetch; each page
// gets its own tab.
type BrowserFetcher struct {
	browserCtx   context.Context
	cancel       context.CancelFunc
	limiter      *rate.Limiter
	waitSelector string
	timeout      time.Duration
}

// NewBrowser launches headless Chrome. The browser lives until Close is called
// or parent is done.
func NewBrowser(parent context.Context, cfg BrowserConfig) (*BrowserFetcher, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		browserCancel()
		allocCancel()
	}

	// The first run on the browser context starts the process. Tabs made from
	// it afterwards share it.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("error starting browser: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	return &BrowserFetcher{
		browserCtx:   browserCtx,
		cancel:       cancel,
		limiter:      limiter,
		waitSelector: cfg.WaitSelector,
		timeout:      cfg.Timeout,
	}, nil
}

// Close shuts the browser down.
func (f *BrowserFetcher) Close() {
	f.cancel()
}

func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: KindNavigation, URL: pageURL, Err: err}
	}

	tabCtx, cancel := chromedp.NewContext(f.browserCtx)
	defer cancel()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTimeout()

	// Stop the tab if the caller goes away before the timeout.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var (
		body     string
		location string
	)
	actions := []chromedp.Action{chromedp.Navigate(pageURL)}
	if f.waitSelector != "" {
		actions = append(actions, chromedp.WaitReady(f.waitSelector, chromedp.ByQuery))
	}
	actions = append(actions,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &body, chromedp.ByQuery),
	)

	err := chromedp.Run(tabCtx, actions...)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, &Error{Kind: KindTimeout, URL: pageURL, Err: err}
	}
	if err != nil {
		return nil, &Error{Kind: KindNavigation, URL: pageURL, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindNavigation, URL: pageURL, Err: fmt.Errorf("error parsing document: %w", err)}
	}
	u, err := url.Parse(location)
	if err != nil || location == "" {
		u, _ = url.Parse(pageURL)
	}

	return &Page{URL: u, Doc: doc}, nil
}
