package crawl

import (
	"fmt"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
	"github.com/jdholdren/aptwatch/internal/extract"
	"github.com/jdholdren/aptwatch/internal/fetch"
)

// Strategy is how one source is crawled: what loads its pages and what reads
// them.
type Strategy struct {
	Fetcher   fetch.Fetcher
	Extractor extract.Extractor
}

// FetcherFunc builds the fetcher for a layout.
type FetcherFunc func(l Layout) (fetch.Fetcher, error)

// Registry resolves a source to its strategy.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds a strategy for every layout. Later layouts replace earlier
// ones with the same name.
func NewRegistry(layouts []Layout, newFetcher FetcherFunc) (*Registry, error) {
	r := &Registry{strategies: map[string]Strategy{}}
	for _, l := range layouts {
		f, err := newFetcher(l)
		if err != nil {
			return nil, fmt.Errorf("error building fetcher for layout %s: %w", l.Name, err)
		}
		r.Register(l.Name, Strategy{Fetcher: f, Extractor: extract.New(l.Selectors)})
	}

	return r, nil
}

func (r *Registry) Register(name string, s Strategy) {
	r.strategies[name] = s
}

// Lookup picks the strategy named by the source's layout, then by its URL
// name, then the default layout.
func (r *Registry) Lookup(src aptwatch.Source) (Strategy, error) {
	for _, name := range []string{src.Layout, src.URLName, DefaultLayout} {
		if name == "" {
			continue
		}
		if s, ok := r.strategies[name]; ok {
			return s, nil
		}
	}

	return Strategy{}, fmt.Errorf("no layout registered for source %s", src.Name)
}
