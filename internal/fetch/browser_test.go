package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireChrome(t *testing.T) {
	t.Helper()

	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no chrome binary on PATH")
}

func TestBrowserFetcher(t *testing.T) {
	requireChrome(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/page-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><ul><li class="item">one</li></ul></body></html>`)
	})
	// Present but hidden items still count as loaded.
	mux.HandleFunc("/page-2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><ul><li class="item" style="display:none">two</li></ul></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f, err := NewBrowser(context.Background(), BrowserConfig{WaitSelector: "li.item", Timeout: 10 * time.Second})
	require.NoError(t, err)
	t.Cleanup(f.Close)

	browser := chromedp.FromContext(f.browserCtx).Browser
	require.NotNil(t, browser, "browser is started up front")
	pid := browser.Process().Pid

	for _, path := range []string{"/page-1", "/page-2"} {
		p, err := f.Fetch(context.Background(), srv.URL+path)
		require.NoError(t, err, path)
		assert.Equal(t, 1, p.Doc.Find("li.item").Length())
		assert.Equal(t, path, p.URL.Path)
	}

	assert.Equal(t, pid, chromedp.FromContext(f.browserCtx).Browser.Process().Pid, "every tab shares one browser")
}
