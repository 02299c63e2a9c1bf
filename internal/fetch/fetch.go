// Package fetch retrieves listing pages and hands them back as parsed documents.
package fetch

import (
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// Page is a fetched and parsed document along with the URL it ended up at.
type Page struct {
	URL *url.URL
	Doc *goquery.Document
}

// Fetcher loads a single page.
//
// Implementations return an [*Error] when the page could not be loaded or the
// listing container never showed up.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*Page, error)
}

type Kind string

const (
	// The listing container did not appear in time.
	KindTimeout Kind = "timeout"
	// The page could not be reached at all.
	KindNavigation Kind = "navigation"
	// The server answered with a non-success status.
	KindStatus Kind = "status"
)

// Error describes a page that could not be fetched.
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s (%s): %s", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
