package crawl

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jdholdren/aptwatch/internal/extract"
)

// Fetcher kinds a layout can ask for.
const (
	FetcherHTTP    = "http"
	FetcherBrowser = "browser"
)

// DefaultLayout is used for sources that name no layout of their own.
const DefaultLayout = "pararius"

// Layout describes how to read one site's listing pages.
type Layout struct {
	Name string `yaml:"name"`
	// Fetcher is either "http" or "browser". Empty means http.
	Fetcher string `yaml:"fetcher"`

	extract.Selectors `yaml:",inline"`
}

// Pararius is the layout of pararius.com city search pages.
var Pararius = Layout{
	Name:    "pararius",
	Fetcher: FetcherBrowser,
	Selectors: extract.Selectors{
		Item:    "li.search-list__item--listing",
		Title:   "h2.listing-search-item__title",
		Price:   "div.listing-search-item__price",
		Link:    "a.listing-search-item__link--title",
		Address: "div.listing-search-item__sub-title",
		Specs:   "ul.illustrated-features__list li",
		Next:    `a[rel="next"]`,
	},
}

// BuiltinLayouts are always available, and can be overridden by name from a
// layouts file.
func BuiltinLayouts() []Layout {
	return []Layout{Pararius}
}

type layoutsFile struct {
	Layouts []Layout `yaml:"layouts"`
}

// LoadLayouts reads layouts from YAML of the form:
//
//	layouts:
//	  - name: funda
//	    fetcher: browser
//	    item: li.search-result
//	    title: h2
//	    ...
func LoadLayouts(r io.Reader) ([]Layout, error) {
	var f layoutsFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("error decoding layouts: %w", err)
	}

	for i, l := range f.Layouts {
		if err := l.validate(); err != nil {
			return nil, fmt.Errorf("layout %d: %w", i, err)
		}
	}

	return f.Layouts, nil
}

// LoadLayoutsFile is [LoadLayouts] on a file path.
func LoadLayoutsFile(path string) ([]Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening layouts file: %w", err)
	}
	defer f.Close()

	return LoadLayouts(f)
}

func (l Layout) validate() error {
	switch {
	case l.Name == "":
		return fmt.Errorf("name is required")
	case l.Item == "" || l.Title == "" || l.Price == "" || l.Link == "":
		return fmt.Errorf("%s: item, title, price and link selectors are required", l.Name)
	case l.Fetcher != "" && l.Fetcher != FetcherHTTP && l.Fetcher != FetcherBrowser:
		return fmt.Errorf("%s: unknown fetcher %q", l.Name, l.Fetcher)
	}

	return nil
}
