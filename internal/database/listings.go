package database

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
)

func (r Repo) KnownURLs(ctx context.Context, sourceID string) (map[string]struct{}, error) {
	var urls []string
	if err := r.db.SelectContext(ctx, &urls, r.q(`SELECT url FROM listings WHERE source_id = ?;`), sourceID); err != nil {
		return nil, fmt.Errorf("error selecting known urls: %s", err)
	}

	known := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		known[u] = struct{}{}
	}

	return known, nil
}

// InsertListing stores a listing unless its URL is already known for the
// source, in which case it returns [aptwatch.ErrConflict] and leaves the
// stored row alone.
func (r Repo) InsertListing(ctx context.Context, l aptwatch.Listing) (aptwatch.Listing, error) {
	const q = `INSERT INTO listings (id, source_id, title, price, price_text, url, address, bedrooms, area, specs, discovered_at, notified)
		VALUES (:id, :source_id, :title, :price, :price_text, :url, :address, :bedrooms, :area, :specs, :discovered_at, :notified)
		ON CONFLICT (source_id, url) DO NOTHING;`

	l.ID = fmt.Sprintf("%s%s", uuid.NewString(), listingNamespace)
	l.DiscoveredAt = l.DiscoveredAt.UTC()
	l.Notified = false

	res, err := r.db.NamedExecContext(ctx, q, l)
	if isUniqueViolation(err) {
		return aptwatch.Listing{}, fmt.Errorf("listing already exists: %w", aptwatch.ErrConflict)
	}
	if err != nil {
		return aptwatch.Listing{}, fmt.Errorf("error inserting listing: %s", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return aptwatch.Listing{}, fmt.Errorf("error reading inserted rows: %s", err)
	}
	if n == 0 {
		return aptwatch.Listing{}, fmt.Errorf("listing already exists: %w", aptwatch.ErrConflict)
	}

	return l, nil
}

// MarkNotified sets notified on all given listings in one statement. Rows that
// are already notified are left untouched.
func (r Repo) MarkNotified(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := r.sb.Update("listings").
		Set("notified", true).
		Where(sq.Eq{"id": ids}).
		Where(sq.Eq{"notified": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error marking listings notified: %s", err)
	}

	return nil
}

// SourceListings pages through a source's listings, newest first.
func (r Repo) SourceListings(ctx context.Context, sourceID string, args aptwatch.ListingsArgs) ([]aptwatch.Listing, error) {
	b := r.sb.Select("*").
		From("listings").
		Where(sq.Eq{"source_id": sourceID}).
		OrderBy("discovered_at DESC", "id")
	if args.Notified != nil {
		b = b.Where(sq.Eq{"notified": *args.Notified})
	}
	// sqlite only accepts OFFSET after a LIMIT.
	if args.Limit > 0 {
		b = b.Limit(args.Limit).Offset(args.Offset)
	}

	query, qArgs, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	listings := []aptwatch.Listing{}
	if err := r.db.SelectContext(ctx, &listings, query, qArgs...); err != nil {
		return nil, fmt.Errorf("error selecting listings: %s", err)
	}

	return listings, nil
}
