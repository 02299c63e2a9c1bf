package crawl

import (
	"context"
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
	"github.com/jdholdren/aptwatch/internal/fetch"
)

const defaultMaxPages = 10

type walkState int

const (
	stateStart walkState = iota
	stateFetching
	stateExtracting
	stateFollowingNext
	stateDone
	stateFailed
)

// Walker follows a source's result pages from its base URL.
type Walker struct {
	// MaxPages caps the pages fetched in one walk. Zero means 10.
	MaxPages int
}

// WalkResult is everything one walk produced. Records collected before a
// fetch failure are kept.
type WalkResult struct {
	Records []aptwatch.ListingRecord
	Pages   int
	// Skipped counts elements that could not be extracted.
	Skipped int
	// Err is the fetch error that ended the walk early, if any.
	Err error
}

func (w Walker) Walk(ctx context.Context, src aptwatch.Source, s Strategy) WalkResult {
	maxPages := w.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	var (
		res     WalkResult
		state   = stateStart
		current string
		page    int
		fetched *fetch.Page
	)
	for {
		switch state {
		case stateStart:
			current, page = src.BaseURL, 1
			state = stateFetching

		case stateFetching:
			if err := ctx.Err(); err != nil {
				res.Err = err
				state = stateFailed
				continue
			}
			p, err := s.Fetcher.Fetch(ctx, current)
			if err != nil {
				slog.WarnContext(ctx, "error fetching page", "page", page, "url", current, "err", err)
				res.Err = err
				state = stateFailed
				continue
			}
			res.Pages++
			fetched = p
			state = stateExtracting

		case stateExtracting:
			s.Extractor.Items(fetched.Doc).Each(func(_ int, item *goquery.Selection) {
				rec, err := s.Extractor.Extract(fetched.URL, item)
				if err != nil {
					slog.WarnContext(ctx, "skipping listing element", "page", page, "err", err)
					res.Skipped++
					return
				}
				res.Records = append(res.Records, rec)
			})

			next, ok := s.Extractor.NextPage(fetched.URL, fetched.Doc)
			switch {
			case !ok, page >= maxPages:
				state = stateDone
			default:
				current = next
				state = stateFollowingNext
			}

		case stateFollowingNext:
			page++
			state = stateFetching

		case stateDone, stateFailed:
			return res
		}
	}
}
