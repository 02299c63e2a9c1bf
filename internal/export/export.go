// Package export writes stored listings out as CSV.
package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
)

type row struct {
	Title        string `csv:"title"`
	Price        int    `csv:"price"`
	PriceText    string `csv:"price_text"`
	URL          string `csv:"url"`
	Address      string `csv:"address"`
	Bedrooms     string `csv:"bedrooms"`
	Area         string `csv:"area"`
	Specs        string `csv:"specs"`
	DiscoveredAt string `csv:"discovered_at"`
	Notified     bool   `csv:"notified"`
}

func optInt(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

// WriteListings writes a header and one row per listing. Missing optional
// fields are written as empty cells.
func WriteListings(w io.Writer, listings []aptwatch.Listing) error {
	rows := make([]row, 0, len(listings))
	for _, l := range listings {
		var addr string
		if l.Address != nil {
			addr = *l.Address
		}

		rows = append(rows, row{
			Title:        l.Title,
			Price:        l.Price,
			PriceText:    l.PriceText,
			URL:          l.URL,
			Address:      addr,
			Bedrooms:     optInt(l.Bedrooms),
			Area:         optInt(l.Area),
			Specs:        l.Specs,
			DiscoveredAt: l.DiscoveredAt.UTC().Format(time.RFC3339),
			Notified:     l.Notified,
		})
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("error writing csv: %s", err)
	}

	return nil
}
