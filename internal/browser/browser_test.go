package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobfinder-engine/internal/domain"
)

func TestHTTPFetcherFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/authwall?next=jobs", http.StatusFound)
	})
	mux.HandleFunc("/authwall", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>sign in</body></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewHTTPFetcher(5*time.Second, "")
	page, err := f.Fetch(context.Background(), srv.URL+"/jobs")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/authwall?next=jobs", page.URL)
	assert.Contains(t, page.HTML, "sign in")

	doc, err := page.Document()
	require.NoError(t, err)
	assert.Equal(t, "sign in", doc.Find("body").Text())
}

func TestHTTPFetcherStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{name: "ok", status: 200, check: func(t *testing.T, err error) { assert.NoError(t, err) }},
		{name: "not found", status: 404, check: func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrNotFound) }},
		{name: "forbidden", status: 403, check: func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrAccessDenied) }},
		{name: "unavailable", status: 503, check: func(t *testing.T, err error) { assert.True(t, domain.IsTransient(err)) }},
		{name: "rate limited", status: 429, check: func(t *testing.T, err error) { assert.True(t, domain.IsTransient(err)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.NotEmpty(t, r.Header.Get("User-Agent"))
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := NewHTTPFetcher(5*time.Second, "test-agent").Fetch(context.Background(), srv.URL)
			tt.check(t, err)
		})
	}
}

func TestHTTPFetcherNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPFetcher(time.Second, "").Fetch(context.Background(), url)
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}

func TestPlaywrightFetcher(t *testing.T) {
	if testing.Short() || os.Getenv("JOBFINDER_PLAYWRIGHT") == "" {
		t.Skip("set JOBFINDER_PLAYWRIGHT=1 with browsers installed to run")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><ul class="jobs-search__results-list"><li>one</li></ul></body></html>`))
	}))
	defer srv.Close()

	f, err := NewPlaywrightFetcher(PlaywrightOptions{Headless: true, NavigationTimeout: 10 * time.Second})
	require.NoError(t, err)
	defer f.Close()

	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 200, page.Status)
	assert.Contains(t, page.HTML, "jobs-search__results-list")
}

func TestLoadDetectsWallsByFinalURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/authwall?trk=x", http.StatusFound)
	})
	mux.HandleFunc("/authwall", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>join now</body></html>"))
	})
	mux.HandleFunc("/open", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p id="x">hello</p></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewHTTPFetcher(5*time.Second, "")
	walls := []string{"/AUTHWALL", "/login"}

	_, page, err := Load(context.Background(), f, srv.URL+"/jobs", walls)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	require.NotNil(t, page)

	doc, _, err := Load(context.Background(), f, srv.URL+"/open", walls)
	require.NoError(t, err)
	assert.Equal(t, "hello", doc.Find("#x").Text())

	_, _, err = Load(context.Background(), f, srv.URL+"/missing", walls)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
