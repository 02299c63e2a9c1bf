package aptwatch

import "time"

type (
	// ListingRecord is what an extractor pulls out of a single listing element,
	// before it has a durable identity.
	ListingRecord struct {
		Title     string
		Price     int
		PriceText string
		URL       string
		Address   *string
		Bedrooms  *int
		Area      *int
		Specs     string
	}

	// Listing is a persisted, deduplicated record.
	Listing struct {
		ID           string    `db:"id" json:"id"`
		SourceID     string    `db:"source_id" json:"source_id"`
		Title        string    `db:"title" json:"title"`
		Price        int       `db:"price" json:"price"`
		PriceText    string    `db:"price_text" json:"price_text"`
		URL          string    `db:"url" json:"url"`
		Address      *string   `db:"address" json:"address,omitempty"`
		Bedrooms     *int      `db:"bedrooms" json:"bedrooms,omitempty"`
		Area         *int      `db:"area" json:"area,omitempty"`
		Specs        string    `db:"specs" json:"specs"`
		DiscoveredAt time.Time `db:"discovered_at" json:"discovered_at"`
		// Only ever moves from false to true.
		Notified bool `db:"notified" json:"notified"`
	}
)

// NewListing gives a record the fields it needs to be stored.
func NewListing(sourceID string, rec ListingRecord, discoveredAt time.Time) Listing {
	return Listing{
		SourceID:     sourceID,
		Title:        rec.Title,
		Price:        rec.Price,
		PriceText:    rec.PriceText,
		URL:          rec.URL,
		Address:      rec.Address,
		Bedrooms:     rec.Bedrooms,
		Area:         rec.Area,
		Specs:        rec.Specs,
		DiscoveredAt: discoveredAt,
	}
}
