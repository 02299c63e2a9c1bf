// Package extract turns listing elements of a fetched page into records.
package extract

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
)

var (
	// ErrMissingField is returned when a required field is absent from an element.
	ErrMissingField = errors.New("required field missing")
	// ErrInvalidPrice is returned when the price text holds no number.
	ErrInvalidPrice = errors.New("price could not be parsed")
)

// Selectors are the CSS selectors that locate listing fields on a page.
type Selectors struct {
	Item    string `yaml:"item"`
	Title   string `yaml:"title"`
	Price   string `yaml:"price"`
	Link    string `yaml:"link"`
	Address string `yaml:"address"`
	Specs   string `yaml:"specs"`
	Next    string `yaml:"next"`
}

// Extractor reads listings out of documents using a fixed set of selectors.
type Extractor struct {
	sel    Selectors
	policy *bluemonday.Policy
}

func New(sel Selectors) Extractor {
	return Extractor{
		sel:    sel,
		policy: bluemonday.StrictPolicy(),
	}
}

// Selectors returns the selectors this extractor was built with.
func (e Extractor) Selectors() Selectors {
	return e.sel
}

// Items returns every listing element in the document.
func (e Extractor) Items(doc *goquery.Document) *goquery.Selection {
	return doc.Find(e.sel.Item)
}

// Extract reads one listing element. Relative links are resolved against base.
//
// Title, price text, a parseable price and a link are required. Everything
// else is best effort.
func (e Extractor) Extract(base *url.URL, item *goquery.Selection) (aptwatch.ListingRecord, error) {
	title := e.text(item.Find(e.sel.Title).First())
	if title == "" {
		return aptwatch.ListingRecord{}, fmt.Errorf("%w: title", ErrMissingField)
	}
	priceText := e.text(item.Find(e.sel.Price).First())
	if priceText == "" {
		return aptwatch.ListingRecord{}, fmt.Errorf("%w: price", ErrMissingField)
	}
	href, _ := item.Find(e.sel.Link).First().Attr("href")
	link := resolve(base, href)
	if link == "" {
		return aptwatch.ListingRecord{}, fmt.Errorf("%w: url", ErrMissingField)
	}
	price := ParsePrice(priceText)
	if price == nil {
		return aptwatch.ListingRecord{}, fmt.Errorf("%w: %q", ErrInvalidPrice, priceText)
	}

	rec := aptwatch.ListingRecord{
		Title:     title,
		Price:     *price,
		PriceText: priceText,
		URL:       link,
	}
	if e.sel.Address != "" {
		if addr := e.text(item.Find(e.sel.Address).First()); addr != "" {
			rec.Address = &addr
		}
	}
	if e.sel.Specs != "" {
		var specs []string
		item.Find(e.sel.Specs).Each(func(_ int, s *goquery.Selection) {
			if t := e.text(s); t != "" {
				specs = append(specs, t)
			}
		})
		rec.Specs = strings.Join(specs, ", ")
		rec.Bedrooms = ParseBedrooms(rec.Specs)
		rec.Area = ParseArea(rec.Specs)
	}

	return rec, nil
}

// NextPage returns the absolute URL of the next results page, if the document
// links to one.
func (e Extractor) NextPage(base *url.URL, doc *goquery.Document) (string, bool) {
	if e.sel.Next == "" {
		return "", false
	}
	href, ok := doc.Find(e.sel.Next).First().Attr("href")
	if !ok {
		return "", false
	}
	next := resolve(base, href)

	return next, next != ""
}

// Plain text of a node with stray markup stripped and whitespace collapsed.
func (e Extractor) text(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	clean := html.UnescapeString(e.policy.Sanitize(s.Text()))

	return strings.Join(strings.Fields(clean), " ")
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return u.String()
	}

	return base.ResolveReference(u).String()
}
