package crawl_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
	"github.com/jdholdren/aptwatch/internal/crawl"
	"github.com/jdholdren/aptwatch/internal/database"
	"github.com/jdholdren/aptwatch/internal/dedup"
	"github.com/jdholdren/aptwatch/internal/fetch"
	"github.com/jdholdren/aptwatch/internal/lock"
	"github.com/jdholdren/aptwatch/internal/match"
	"github.com/jdholdren/aptwatch/internal/migrations"
	"github.com/jdholdren/aptwatch/internal/notify"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	page1 = `<html><body><ul>
<li class="search-list__item--listing">
  <h2 class="listing-search-item__title"><a class="listing-search-item__link--title" href="/apartment/a">Apartment A</a></h2>
  <div class="listing-search-item__price">€ 1.200 per month</div>
  <ul class="illustrated-features__list"><li>60 m²</li><li>2 rooms</li></ul>
</li>
<li class="search-list__item--listing">
  <h2 class="listing-search-item__title"><a class="listing-search-item__link--title" href="/apartment/b">Apartment B</a></h2>
  <div class="listing-search-item__sub-title">5611 AB Eindhoven</div>
  <div class="listing-search-item__price">€ 1.100 per month</div>
  <ul class="illustrated-features__list"><li>70 m²</li><li>2 rooms</li></ul>
</li>
</ul>
<a rel="next" href="/apartments/eindhoven/page-2">Next</a>
</body></html>`

	page2 = `<html><body><ul>
<li class="search-list__item--listing">
  <h2 class="listing-search-item__title"><a class="listing-search-item__link--title" href="/apartment/c">Apartment C</a></h2>
  <div class="listing-search-item__price">€ 2.500 per month</div>
  <ul class="illustrated-features__list"><li>110 m²</li><li>3 rooms</li></ul>
</li>
</ul>
</body></html>`
)

type recordingSender struct {
	sent []notify.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg notify.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type fixture struct {
	repo   database.Repo
	runner *crawl.Runner
	sender *recordingSender
	locker *lock.Local
	src    aptwatch.Source
	srv    *httptest.Server
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("/apartments/eindhoven", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page1)
	})
	mux.HandleFunc("/apartments/eindhoven/page-2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page2)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	dbx, err := sqlx.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })
	require.NoError(t, migrations.Run(dbx))
	repo := database.New(dbx)

	src, err := repo.InsertSource(ctx, aptwatch.Source{
		Name:    "Eindhoven",
		URLName: "eindhoven",
		BaseURL: srv.URL + "/apartments/eindhoven",
		Active:  true,
	})
	require.NoError(t, err)

	registry, err := crawl.NewRegistry(crawl.BuiltinLayouts(), func(l crawl.Layout) (fetch.Fetcher, error) {
		return fetch.NewHTTP(fetch.HTTPConfig{WaitSelector: l.Item, Timeout: 2 * time.Second}), nil
	})
	require.NoError(t, err)

	var (
		now    = func() time.Time { return testNow }
		sender = &recordingSender{}
		locker = lock.NewLocal()
	)
	runner := crawl.NewRunner(crawl.Params{
		Repo:       repo,
		Registry:   registry,
		Dedup:      dedup.NewStore(repo, now),
		Matcher:    match.NewEngine(repo),
		Dispatcher: notify.NewDispatcher(sender, repo, notify.DispatcherConfig{MarkOnFailure: true, Now: now}),
		Locker:     locker,
		Now:        now,
	})

	return fixture{repo: repo, runner: runner, sender: sender, locker: locker, src: src, srv: srv}
}

func (f fixture) listingsByTitle(t *testing.T) map[string]aptwatch.Listing {
	t.Helper()
	ls, err := f.repo.SourceListings(context.Background(), f.src.ID, aptwatch.ListingsArgs{})
	require.NoError(t, err)
	byTitle := map[string]aptwatch.Listing{}
	for _, l := range ls {
		byTitle[l.Title] = l
	}
	return byTitle
}

func TestRun_EndToEnd(t *testing.T) {
	var (
		ctx = context.Background()
		f   = newFixture(t)
	)

	// A is already known from an earlier run.
	_, err := f.repo.InsertListing(ctx, aptwatch.NewListing(f.src.ID, aptwatch.ListingRecord{
		Title:     "Apartment A",
		Price:     1200,
		PriceText: "€ 1.200 per month",
		URL:       f.srv.URL + "/apartment/a",
	}, testNow.Add(-24*time.Hour)))
	require.NoError(t, err)

	user, err := f.repo.EnsureUser(ctx, "renter@example.com")
	require.NoError(t, err)
	sub, err := f.repo.InsertSubscription(ctx, aptwatch.Subscription{
		UserID:      user.ID,
		SourceID:    f.src.ID,
		MinPrice:    1000,
		MaxPrice:    1500,
		MinBedrooms: 1,
		MaxBedrooms: 2,
		Active:      true,
	})
	require.NoError(t, err)

	res := f.runner.Run(ctx, f.src)
	assert.Equal(t, crawl.Result{OK: true, TotalSeen: 3, NewCount: 2}, res)
	assert.Equal(t, "Found 3 listings, 2 new", res.Summary())

	// One message, only B in it.
	require.Len(t, f.sender.sent, 1)
	msg := f.sender.sent[0]
	assert.Equal(t, "renter@example.com", msg.To)
	assert.Contains(t, msg.Text, "Apartment B")
	assert.NotContains(t, msg.Text, "Apartment C")
	assert.NotContains(t, msg.Text, "Apartment A")

	byTitle := f.listingsByTitle(t)
	require.Len(t, byTitle, 3)
	assert.True(t, byTitle["Apartment B"].Notified)
	assert.False(t, byTitle["Apartment C"].Notified)
	assert.False(t, byTitle["Apartment A"].Notified)
	assert.Nil(t, byTitle["Apartment A"].Bedrooms, "known listing is left unchanged")
	require.NotNil(t, byTitle["Apartment C"].Area)
	assert.Equal(t, 110, *byTitle["Apartment C"].Area)
	require.NotNil(t, byTitle["Apartment B"].Address)
	assert.Equal(t, "5611 AB Eindhoven", *byTitle["Apartment B"].Address)

	got, err := f.repo.Subscription(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastCheckedAt)
	assert.True(t, testNow.Equal(*got.LastCheckedAt))

	// Nothing changed on the site, so nothing is new the second time around.
	res = f.runner.Run(ctx, f.src)
	assert.Equal(t, crawl.Result{OK: true, TotalSeen: 3, NewCount: 0}, res)
	assert.Len(t, f.sender.sent, 1)
}

func TestRun_SkipsWhenLocked(t *testing.T) {
	var (
		ctx = context.Background()
		f   = newFixture(t)
	)

	release, err := f.locker.Acquire(ctx, "aptwatch:run:"+f.src.ID)
	require.NoError(t, err)

	res := f.runner.Run(ctx, f.src)
	assert.False(t, res.OK)
	assert.Equal(t, "Scraper failed", res.Summary())
	assert.Empty(t, f.listingsByTitle(t))

	release()
	assert.True(t, f.runner.Run(ctx, f.src).OK)
}

func TestRun_FailureDoesNotStamp(t *testing.T) {
	var (
		ctx = context.Background()
		f   = newFixture(t)
	)
	user, err := f.repo.EnsureUser(ctx, "renter@example.com")
	require.NoError(t, err)
	sub, err := f.repo.InsertSubscription(ctx, aptwatch.Subscription{
		UserID: user.ID, SourceID: f.src.ID, MaxPrice: 5000, MaxBedrooms: 10, Active: true,
	})
	require.NoError(t, err)

	// No layout resolves for this runner, so the run cannot complete.
	empty, err := crawl.NewRegistry(nil, nil)
	require.NoError(t, err)
	runner := crawl.NewRunner(crawl.Params{
		Repo:     f.repo,
		Registry: empty,
	})
	assert.Equal(t, crawl.Result{}, runner.Run(ctx, f.src))

	got, err := f.repo.Subscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastCheckedAt)
}

func TestRunAllAndRunSource(t *testing.T) {
	var (
		ctx = context.Background()
		f   = newFixture(t)
	)
	inactive, err := f.repo.InsertSource(ctx, aptwatch.Source{
		Name: "Rotterdam", URLName: "rotterdam", BaseURL: f.srv.URL + "/apartments/rotterdam", Active: false,
	})
	require.NoError(t, err)

	summary := f.runner.RunAll(ctx)
	assert.Equal(t, map[string]string{"Eindhoven": "Found 3 listings, 3 new"}, summary)

	res, err := f.runner.RunSource(ctx, f.src.ID)
	require.NoError(t, err)
	assert.Equal(t, crawl.Result{OK: true, TotalSeen: 3, NewCount: 0}, res)

	_, err = f.runner.RunSource(ctx, inactive.ID)
	assert.ErrorIs(t, err, crawl.ErrSourceInactive)

	_, err = f.runner.RunSource(ctx, "missing")
	assert.ErrorIs(t, err, aptwatch.ErrNotFound)
}

// Cancels the run's context as soon as the first listing is stored.
type cancellingRepo struct {
	database.Repo
	cancel context.CancelFunc
}

func (r cancellingRepo) InsertListing(ctx context.Context, l aptwatch.Listing) (aptwatch.Listing, error) {
	stored, err := r.Repo.InsertListing(ctx, l)
	if err == nil {
		r.cancel()
	}
	return stored, err
}

func TestRun_CompletesAfterCallerCancels(t *testing.T) {
	var (
		ctx, cancel = context.WithCancel(context.Background())
		f           = newFixture(t)
		now         = func() time.Time { return testNow }
		sender      = &recordingSender{}
	)
	defer cancel()

	user, err := f.repo.EnsureUser(context.Background(), "renter@example.com")
	require.NoError(t, err)
	_, err = f.repo.InsertSubscription(context.Background(), aptwatch.Subscription{
		UserID: user.ID, SourceID: f.src.ID, MaxPrice: 5000, MaxBedrooms: 10, Active: true,
	})
	require.NoError(t, err)

	registry, err := crawl.NewRegistry(crawl.BuiltinLayouts(), func(l crawl.Layout) (fetch.Fetcher, error) {
		return fetch.NewHTTP(fetch.HTTPConfig{WaitSelector: l.Item, Timeout: 2 * time.Second}), nil
	})
	require.NoError(t, err)
	runner := crawl.NewRunner(crawl.Params{
		Repo:       f.repo,
		Registry:   registry,
		Dedup:      dedup.NewStore(cancellingRepo{Repo: f.repo, cancel: cancel}, now),
		Matcher:    match.NewEngine(f.repo),
		Dispatcher: notify.NewDispatcher(sender, f.repo, notify.DispatcherConfig{MarkOnFailure: true, Now: now}),
		Now:        now,
	})

	res := runner.Run(ctx, f.src)
	require.Error(t, ctx.Err())
	assert.Equal(t, crawl.Result{OK: true, TotalSeen: 3, NewCount: 3}, res)

	require.Len(t, sender.sent, 1)
	for _, title := range []string{"Apartment A", "Apartment B", "Apartment C"} {
		assert.Contains(t, sender.sent[0].Text, title)
	}
	for title, l := range f.listingsByTitle(t) {
		assert.True(t, l.Notified, title)
	}
}
