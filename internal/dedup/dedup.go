// Package dedup keeps only the listings a source has never produced before and
// persists them.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
)

type Store struct {
	repo aptwatch.ListingRepo
	now  func() time.Time
}

func NewStore(repo aptwatch.ListingRepo, now func() time.Time) *Store {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Store{repo: repo, now: now}
}

// FilterAndPersist stores every record whose URL the source has not seen yet
// and returns the stored listings in input order.
//
// URLs repeated within records count once. A record that fails to persist is
// logged and left out; it is not reported as new.
func (s *Store) FilterAndPersist(ctx context.Context, sourceID string, records []aptwatch.ListingRecord) ([]aptwatch.Listing, error) {
	known, err := s.repo.KnownURLs(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("error loading known urls: %w", err)
	}

	var (
		fresh []aptwatch.Listing
		now   = s.now()
	)
	for _, rec := range records {
		if _, ok := known[rec.URL]; ok {
			continue
		}

		l, err := s.repo.InsertListing(ctx, aptwatch.NewListing(sourceID, rec, now))
		if errors.Is(err, aptwatch.ErrConflict) {
			// Stored by someone else since the known set was read.
			slog.DebugContext(ctx, "listing already stored", "url", rec.URL)
			known[rec.URL] = struct{}{}
			continue
		}
		if err != nil {
			slog.ErrorContext(ctx, "error persisting listing", "url", rec.URL, "err", err)
			continue
		}

		known[rec.URL] = struct{}{}
		fresh = append(fresh, l)
	}

	return fresh, nil
}
