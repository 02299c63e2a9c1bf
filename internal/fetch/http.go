package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

type HTTPConfig struct {
	// WaitSelector must match at least one element for the page to count as loaded.
	WaitSelector string
	Timeout      time.Duration
	// Requests per second across all fetches of this fetcher. Zero disables limiting.
	Rate      float64
	UserAgent string
	Client    *http.Client
}

// HTTPFetcher loads pages with plain HTTP requests. It works for sites that
// render their listings server side.
type HTTPFetcher struct {
	client       *http.Client
	limiter      *rate.Limiter
	waitSelector string
	timeout      time.Duration
	userAgent    string
}

func NewHTTP(cfg HTTPConfig) *HTTPFetcher {
	f := &HTTPFetcher{
		client:       cfg.Client,
		limiter:      rate.NewLimiter(rate.Inf, 1),
		waitSelector: cfg.WaitSelector,
		timeout:      cfg.Timeout,
		userAgent:    cfg.UserAgent,
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.timeout <= 0 {
		f.timeout = 10 * time.Second
	}
	if f.userAgent == "" {
		f.userAgent = defaultUserAgent
	}
	if cfg.Rate > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: KindNavigation, URL: pageURL, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindNavigation, URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, &Error{Kind: KindTimeout, URL: pageURL, Err: err}
	}
	if err != nil {
		return nil, &Error{Kind: KindNavigation, URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindStatus, URL: pageURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, &Error{Kind: KindTimeout, URL: pageURL, Err: err}
	}
	if err != nil {
		return nil, &Error{Kind: KindNavigation, URL: pageURL, Err: fmt.Errorf("error parsing document: %w", err)}
	}
	if f.waitSelector != "" && doc.Find(f.waitSelector).Length() == 0 {
		return nil, &Error{Kind: KindTimeout, URL: pageURL, Err: fmt.Errorf("no element matched %q", f.waitSelector)}
	}

	return &Page{URL: resp.Request.URL, Doc: doc}, nil
}
