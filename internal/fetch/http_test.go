package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		fmt.Fprint(w, `<html><body><ul><li class="item">one</li></ul></body></html>`)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>Nothing here</p></body></html>`)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := NewHTTP(HTTPConfig{
		WaitSelector: "li.item",
		Timeout:      200 * time.Millisecond,
	})

	t.Run("loads page", func(t *testing.T) {
		page, err := f.Fetch(context.Background(), srv.URL+"/ok")
		require.NoError(t, err)
		assert.Equal(t, 1, page.Doc.Find("li.item").Length())
		assert.Equal(t, srv.URL+"/ok", page.URL.String())
	})

	t.Run("follows redirects", func(t *testing.T) {
		page, err := f.Fetch(context.Background(), srv.URL+"/redirect")
		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/ok", page.URL.String())
	})

	tests := []struct {
		path string
		kind Kind
	}{
		{path: "/empty", kind: KindTimeout},
		{path: "/gone", kind: KindStatus},
		{path: "/slow", kind: KindTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), srv.URL+tt.path)
			var fetchErr *Error
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.kind, fetchErr.Kind)
			assert.Equal(t, srv.URL+tt.path, fetchErr.URL)
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/nowhere")
		var fetchErr *Error
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, KindNavigation, fetchErr.Kind)
	})
}
