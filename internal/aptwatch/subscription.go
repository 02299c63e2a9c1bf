package aptwatch

import "time"

type (
	User struct {
		ID        string    `db:"id"`
		Email     string    `db:"email"`
		CreatedAt time.Time `db:"created_at"`
	}

	// Subscription is a user's filter criteria scoped to one source.
	Subscription struct {
		ID            string     `db:"id"`
		UserID        string     `db:"user_id"`
		SourceID      string     `db:"source_id"`
		MinPrice      int        `db:"min_price"`
		MaxPrice      int        `db:"max_price"`
		MinBedrooms   int        `db:"min_bedrooms"`
		MaxBedrooms   int        `db:"max_bedrooms"`
		Active        bool       `db:"active"`
		LastCheckedAt *time.Time `db:"last_checked_at"`
		CreatedAt     time.Time  `db:"created_at"`
	}

	// UserSubscription is a subscription joined with the user that owns it.
	UserSubscription struct {
		Subscription

		Email string `db:"email"`
	}

	// MatchResult pairs a user with the new listings that satisfy at least one
	// of their subscriptions. It is never persisted.
	MatchResult struct {
		User     User
		Listings []Listing
	}
)

// Matches reports whether the listing falls inside the subscription's bounds.
//
// Price bounds are inclusive. A listing with unknown bedrooms passes any
// bedroom range.
func (s Subscription) Matches(l Listing) bool {
	if l.Price < s.MinPrice || l.Price > s.MaxPrice {
		return false
	}
	if l.Bedrooms == nil {
		return true
	}

	return *l.Bedrooms >= s.MinBedrooms && *l.Bedrooms <= s.MaxBedrooms
}
