package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
	"github.com/jdholdren/aptwatch/internal/crawl"
	apperrs "github.com/jdholdren/aptwatch/internal/errors"
	"github.com/jdholdren/aptwatch/internal/notify"
)

type fakeRepo struct {
	sources  []aptwatch.Source
	listings []aptwatch.Listing
	gotArgs  aptwatch.ListingsArgs
}

func (f *fakeRepo) Source(_ context.Context, id string) (aptwatch.Source, error) {
	for _, s := range f.sources {
		if s.ID == id {
			return s, nil
		}
	}
	return aptwatch.Source{}, aptwatch.ErrNotFound
}

func (f *fakeRepo) Sources(context.Context) ([]aptwatch.Source, error) {
	return f.sources, nil
}

func (f *fakeRepo) SourceListings(_ context.Context, _ string, args aptwatch.ListingsArgs) ([]aptwatch.Listing, error) {
	f.gotArgs = args
	return f.listings, nil
}

type fakeChecker struct {
	results map[string]crawl.Result
	errs    map[string]error
}

func (f fakeChecker) RunAll(context.Context) map[string]string {
	return map[string]string{"Eindhoven": "Found 3 listings, 1 new"}
}

func (f fakeChecker) RunSource(_ context.Context, id string) (crawl.Result, error) {
	if err, ok := f.errs[id]; ok {
		return crawl.Result{}, err
	}
	return f.results[id], nil
}

type fakeTester map[string]error

func (f fakeTester) SendTest(_ context.Context, id string) error {
	return f[id]
}

func newTestServer() (*Server, *fakeRepo) {
	repo := &fakeRepo{
		sources: []aptwatch.Source{
			{ID: "ein", Name: "Eindhoven", Active: true},
			{ID: "rot", Name: "Rotterdam"},
		},
		listings: []aptwatch.Listing{{ID: "l1", Title: "Flat", Price: 1200}},
	}
	checker := fakeChecker{
		results: map[string]crawl.Result{"ein": {OK: true, TotalSeen: 3, NewCount: 1}},
		errs: map[string]error{
			"rot":     crawl.ErrSourceInactive,
			"missing": fmt.Errorf("error fetching source: %w", aptwatch.ErrNotFound),
			"remote":  apperrs.E("source not found", http.StatusNotFound),
		},
	}
	tester := fakeTester{
		"off":     notify.ErrSubscriptionInactive,
		"nosmtp":  notify.ErrNotConfigured,
		"missing": fmt.Errorf("error fetching subscription: %w", aptwatch.ErrNotFound),
	}

	return NewServer(ServerConfig{Port: 4444}, repo, checker, tester), repo
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRoutes(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "health",
			method:     http.MethodGet,
			path:       "/api/health",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "check all",
			method:     http.MethodPost,
			path:       "/api/check",
			wantStatus: http.StatusOK,
			wantBody:   `{"summary":{"Eindhoven":"Found 3 listings, 1 new"}}`,
		},
		{
			name:       "check source",
			method:     http.MethodPost,
			path:       "/api/sources/ein/check",
			wantStatus: http.StatusOK,
			wantBody:   `{"ok":true,"total_seen":3,"new_count":1}`,
		},
		{
			name:       "check inactive source",
			method:     http.MethodPost,
			path:       "/api/sources/rot/check",
			wantStatus: http.StatusConflict,
			wantBody:   `{"message":"source is not active","details":null,"status":409}`,
		},
		{
			name:       "check missing source",
			method:     http.MethodPost,
			path:       "/api/sources/missing/check",
			wantStatus: http.StatusNotFound,
			wantBody:   `{"message":"error fetching source: resource not found","details":null,"status":404}`,
		},
		{
			name:       "structured error from worker",
			method:     http.MethodPost,
			path:       "/api/sources/remote/check",
			wantStatus: http.StatusNotFound,
			wantBody:   `{"message":"source not found","details":null,"status":404}`,
		},
		{
			name:       "test notification",
			method:     http.MethodPost,
			path:       "/api/subscriptions/s1/test-notification",
			wantStatus: http.StatusOK,
			wantBody:   `{"sent":true}`,
		},
		{
			name:       "test notification inactive",
			method:     http.MethodPost,
			path:       "/api/subscriptions/off/test-notification",
			wantStatus: http.StatusConflict,
			wantBody:   `{"message":"subscription is not active","details":null,"status":409}`,
		},
		{
			name:       "test notification without smtp",
			method:     http.MethodPost,
			path:       "/api/subscriptions/nosmtp/test-notification",
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"message":"email credentials not configured","details":null,"status":503}`,
		},
		{
			name:       "test notification missing",
			method:     http.MethodPost,
			path:       "/api/subscriptions/missing/test-notification",
			wantStatus: http.StatusNotFound,
			wantBody:   `{"message":"error fetching subscription: resource not found","details":null,"status":404}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer()

			rec := do(t, s, tt.method, tt.path)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestGetSources(t *testing.T) {
	s, _ := newTestServer()

	rec := do(t, s, http.MethodGet, "/api/sources")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sources []aptwatch.Source `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "Eindhoven", resp.Sources[0].Name)
	assert.False(t, resp.Sources[1].Active)
}

func TestGetSourceListings(t *testing.T) {
	t.Run("paginates", func(t *testing.T) {
		s, repo := newTestServer()

		rec := do(t, s, http.MethodGet, "/api/sources/ein/listings?limit=10&offset=20")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, aptwatch.ListingsArgs{Limit: 10, Offset: 20}, repo.gotArgs)

		var resp listingsResp
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Listings, 1)
		assert.Equal(t, "l1", resp.Listings[0].ID)
		assert.Equal(t, paginationMeta{Limit: 10, Offset: 20, Count: 1}, resp.Pagination)
	})

	t.Run("clamps bad params", func(t *testing.T) {
		s, repo := newTestServer()

		rec := do(t, s, http.MethodGet, "/api/sources/ein/listings?limit=5000&offset=-3")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, aptwatch.ListingsArgs{Limit: 50, Offset: 0}, repo.gotArgs)
	})

	t.Run("unknown source", func(t *testing.T) {
		s, _ := newTestServer()

		rec := do(t, s, http.MethodGet, "/api/sources/nope/listings")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer()

	rec := do(t, s, http.MethodGet, "/api/check")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
