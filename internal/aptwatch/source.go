package aptwatch

import "time"

// Source is a crawlable listing site or region, e.g. a city on a rental portal.
type Source struct {
	ID      string `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	URLName string `db:"url_name" json:"url_name"`
	// BaseURL is the first page of the crawl.
	BaseURL string `db:"base_url" json:"base_url"`
	// Layout names the extraction strategy; empty falls back to URLName.
	Layout    string    `db:"layout" json:"layout"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
