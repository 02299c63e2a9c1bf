// Package aptwatch holds the domain types shared by the crawl pipeline and the
// surfaces around it.
package aptwatch

import (
	"context"
	"errors"
	"time"
)

var (
	ErrConflict = errors.New("resource already exists")
	ErrNotFound = errors.New("resource not found")
)

// Repository is everything the pipeline needs from the durable store.
type Repository interface {
	SourceRepo
	ListingRepo
	SubscriptionRepo
}

type (
	SourceRepo interface {
		Source(ctx context.Context, id string) (Source, error)
		Sources(ctx context.Context) ([]Source, error)
		ActiveSources(ctx context.Context) ([]Source, error)
		InsertSource(ctx context.Context, src Source) (Source, error)
	}

	ListingRepo interface {
		// KnownURLs returns every listing URL already stored for the source.
		KnownURLs(ctx context.Context, sourceID string) (map[string]struct{}, error)
		// InsertListing persists a single listing in its own unit of work.
		//
		// Returns ErrConflict when the URL is already stored for the source.
		InsertListing(ctx context.Context, l Listing) (Listing, error)
		// MarkNotified flips the notified flag for all given listings atomically.
		MarkNotified(ctx context.Context, ids []string) error
		SourceListings(ctx context.Context, sourceID string, args ListingsArgs) ([]Listing, error)
	}

	SubscriptionRepo interface {
		Subscription(ctx context.Context, id string) (Subscription, error)
		// ActiveSubscriptions returns the active subscriptions for a source, each
		// with the owning user attached.
		ActiveSubscriptions(ctx context.Context, sourceID string) ([]UserSubscription, error)
		StampLastChecked(ctx context.Context, sourceID string, at time.Time) error
		User(ctx context.Context, id string) (User, error)
	}

	// ListingsArgs narrows a listing query.
	ListingsArgs struct {
		Limit    uint64
		Offset   uint64
		Notified *bool
	}
)
