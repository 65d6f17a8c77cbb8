package listingapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobfinder-engine/internal/domain"
	"jobfinder-engine/internal/scrape/types"
)

func newServer(t *testing.T, h http.HandlerFunc) *Scraper {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, APIKey: "secret"})
}

func TestListPage(t *testing.T) {
	s := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scrape/indeed/listing", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, "go developer", r.URL.Query().Get("keyword"))
		assert.Equal(t, "Berlin", r.URL.Query().Get("location"))
		assert.Equal(t, "www.indeed.com", r.URL.Query().Get("domain"))
		assert.Equal(t, "30", r.URL.Query().Get("start"))

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{
			"jobs": [
				{"url": "https://www.indeed.com/viewjob?jk=aaa&from=serp"},
				{"jobKey": "bbb"},
				{"title": "no link"}
			],
			"pagination": {"nextPage": "https://api/next"}
		}`))
	})

	page, err := s.ListPage(context.Background(), types.Query{Position: "go developer", Location: "Berlin"}, 30)
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	require.Len(t, page.Candidates, 2)

	assert.Equal(t, "jk:aaa", page.Candidates[0].Key)
	assert.Equal(t, "https://www.indeed.com/viewjob?jk=aaa&from=serp", page.Candidates[0].URL)
	assert.Equal(t, "jk:bbb", page.Candidates[1].Key)
	assert.Equal(t, "https://www.indeed.com/viewjob?jk=bbb", page.Candidates[1].URL)
}

func TestListPageLastPage(t *testing.T) {
	bodies := []string{
		`{"jobs":[{"jobKey":"x"}],"pagination":{"nextPage":null}}`,
		`{"jobs":[{"jobKey":"x"}],"pagination":{"nextPage":""}}`,
		`{"jobs":[{"jobKey":"x"}],"pagination":{}}`,
		`{"jobs":[{"jobKey":"x"}]}`,
	}
	for _, body := range bodies {
		s := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		})
		page, err := s.ListPage(context.Background(), types.Query{}, 0)
		require.NoError(t, err)
		assert.False(t, page.HasMore, body)
		assert.Len(t, page.Candidates, 1)
	}
}

func TestFetchDetail(t *testing.T) {
	s := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scrape/indeed/job", r.URL.Path)
		assert.Equal(t, "https://www.indeed.com/viewjob?jk=abc", r.URL.Query().Get("url"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"job":{"title":"Go Dev","company":"Acme"},"requestMetadata":{"url":"https://www.indeed.com/viewjob?jk=abc"}}`))
	})

	raw, err := s.FetchDetail(context.Background(), types.CandidateRef{URL: "abc"})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceListingAPI, raw.Source)
	job := raw.Data["job"].(map[string]any)
	assert.Equal(t, "Go Dev", job["title"])
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status    int
		want      error
		transient bool
	}{
		{http.StatusNotFound, domain.ErrNotFound, false},
		{http.StatusUnauthorized, domain.ErrAccessDenied, false},
		{http.StatusForbidden, domain.ErrAccessDenied, false},
		{http.StatusTooManyRequests, nil, true},
		{http.StatusBadGateway, nil, true},
	}
	for _, tc := range cases {
		s := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		})
		_, err := s.FetchDetail(context.Background(), types.CandidateRef{URL: "https://www.indeed.com/viewjob?jk=1"})
		require.Error(t, err, tc.status)
		if tc.want != nil {
			assert.ErrorIs(t, err, tc.want, tc.status)
		}
		assert.Equal(t, tc.transient, domain.IsTransient(err), tc.status)
	}
}

func TestNonJSONIsMalformed(t *testing.T) {
	s := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>captcha</html>"))
	})
	_, err := s.FetchDetail(context.Background(), types.CandidateRef{URL: "x"})
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	assert.False(t, domain.IsTransient(err))

	s = newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{not json"))
	})
	_, err = s.ListPage(context.Background(), types.Query{}, 0)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestIdentity(t *testing.T) {
	s := New(Config{})
	assert.Equal(t, domain.SourceListingAPI, s.Source())
	assert.Equal(t, 15, s.PageSize())
}
