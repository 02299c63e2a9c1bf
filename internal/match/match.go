// Package match pairs new listings with the users whose subscriptions they
// satisfy.
package match

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
)

type Engine struct {
	repo aptwatch.SubscriptionRepo
}

func NewEngine(repo aptwatch.SubscriptionRepo) *Engine {
	return &Engine{repo: repo}
}

// Match evaluates the source's active subscriptions against listings.
//
// Users without a matching listing are left out of the result.
func (e *Engine) Match(ctx context.Context, sourceID string, listings []aptwatch.Listing) ([]aptwatch.MatchResult, error) {
	if len(listings) == 0 {
		return nil, nil
	}

	subs, err := e.repo.ActiveSubscriptions(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("error loading subscriptions: %w", err)
	}

	return Group(subs, listings), nil
}

// Group collects, per user, the listings that satisfy at least one of their
// subscriptions. A listing appears at most once per user no matter how many of
// their subscriptions it satisfies.
//
// Users keep the order they first appear in subs and listings keep their input
// order.
func Group(subs []aptwatch.UserSubscription, listings []aptwatch.Listing) []aptwatch.MatchResult {
	var (
		results []aptwatch.MatchResult
		index   = map[string]int{}
		seen    = map[string]map[string]struct{}{}
	)
	for _, sub := range subs {
		if !sub.Active {
			continue
		}

		for _, l := range listings {
			if !sub.Matches(l) {
				continue
			}

			i, ok := index[sub.UserID]
			if !ok {
				i = len(results)
				index[sub.UserID] = i
				seen[sub.UserID] = map[string]struct{}{}
				results = append(results, aptwatch.MatchResult{
					User: aptwatch.User{ID: sub.UserID, Email: sub.Email},
				})
			}
			if _, dup := seen[sub.UserID][l.ID]; dup {
				continue
			}
			seen[sub.UserID][l.ID] = struct{}{}
			results[i].Listings = append(results[i].Listings, l)
		}
	}

	// A user matched by several subscriptions collects listings in subscription
	// order; put them back in input order.
	order := make(map[string]int, len(listings))
	for i, l := range listings {
		order[l.ID] = i
	}
	for _, r := range results {
		slices.SortFunc(r.Listings, func(a, b aptwatch.Listing) int {
			return cmp.Compare(order[a.ID], order[b.ID])
		})
	}

	return results
}
