// Package listingapi reads postings from a hosted scraping API that returns
// Indeed listings and job details as JSON.
package listingapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"jobfinder-engine/internal/domain"
	"jobfinder-engine/internal/scrape/types"
	"jobfinder-engine/internal/scrape/util"
)

const (
	DefaultBaseURL = "https://api.hasdata.com"
	DefaultDomain  = "www.indeed.com"
	pageSize       = 15
)

type Config struct {
	BaseURL string
	APIKey  string
	Domain  string // indeed site to search, e.g. www.indeed.com
	Timeout time.Duration
}

type Scraper struct {
	cfg Config
	hc  *http.Client
}

func New(cfg Config) *Scraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Scraper{
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *Scraper) Source() domain.Source { return domain.SourceListingAPI }
func (s *Scraper) PageSize() int         { return pageSize }

type listingResponse struct {
	Jobs []struct {
		URL    string `json:"url"`
		JobKey string `json:"jobKey"`
		Title  string `json:"title"`
	} `json:"jobs"`
	Pagination struct {
		NextPage json.RawMessage `json:"nextPage"`
	} `json:"pagination"`
}

func (s *Scraper) ListPage(ctx context.Context, q types.Query, offset int) (types.Page, error) {
	params := url.Values{}
	params.Set("keyword", q.Position)
	params.Set("location", q.Location)
	params.Set("domain", s.cfg.Domain)
	params.Set("start", strconv.Itoa(offset))

	body, err := s.get(ctx, "/scrape/indeed/listing", params)
	if err != nil {
		return types.Page{}, fmt.Errorf("listing api: list offset %d: %w", offset, err)
	}

	var lr listingResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return types.Page{}, fmt.Errorf("%w: listing api: decode listing: %v", domain.ErrMalformedResponse, err)
	}

	var page types.Page
	for _, j := range lr.Jobs {
		link := s.jobURL(util.FirstNonEmpty(j.URL, j.JobKey))
		if link == "" {
			continue
		}
		page.Candidates = append(page.Candidates, types.CandidateRef{
			Key: candidateKey(link),
			URL: link,
		})
	}
	page.HasMore = hasNextPage(lr.Pagination.NextPage)
	return page, nil
}

func (s *Scraper) FetchDetail(ctx context.Context, ref types.CandidateRef) (types.RawRecord, error) {
	params := url.Values{}
	params.Set("url", s.jobURL(ref.URL))

	body, err := s.get(ctx, "/scrape/indeed/job", params)
	if err != nil {
		return types.RawRecord{}, fmt.Errorf("listing api: detail %s: %w", ref.URL, err)
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return types.RawRecord{}, fmt.Errorf("%w: listing api: decode detail: %v", domain.ErrMalformedResponse, err)
	}
	return types.RawRecord{Source: s.Source(), Data: data}, nil
}

// jobURL turns a bare job key into a viewjob URL; full URLs pass through.
func (s *Scraper) jobURL(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		return v
	}
	return "https://" + s.cfg.Domain + "/viewjob?jk=" + url.QueryEscape(v)
}

// candidateKey is the jk parameter when there is one, so the same posting
// reached through different tracking URLs collapses to one candidate.
func candidateKey(link string) string {
	if u, err := url.Parse(link); err == nil {
		if jk := u.Query().Get("jk"); jk != "" {
			return "jk:" + jk
		}
	}
	return util.CanonicalizeURL(link)
}

func hasNextPage(raw json.RawMessage) bool {
	v := strings.TrimSpace(string(raw))
	switch v {
	case "", "null", `""`, "false", "0":
		return false
	}
	return true
}

func (s *Scraper) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", s.cfg.APIKey)

	res, err := s.hc.Do(req)
	if err != nil {
		return nil, domain.NewTransientError("listing api request", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return nil, domain.NewTransientError("listing api read", err)
	}

	if err := statusError(res.StatusCode, body); err != nil {
		return nil, err
	}

	mt, _, _ := mime.ParseMediaType(res.Header.Get("Content-Type"))
	if mt != "application/json" {
		return nil, fmt.Errorf("%w: content type %q: %s", domain.ErrMalformedResponse, mt, util.Truncate(string(body), 200))
	}
	return body, nil
}

func statusError(code int, body []byte) error {
	switch {
	case code < 400:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return domain.ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", domain.ErrAccessDenied, code)
	case code == http.StatusTooManyRequests || code >= 500:
		return domain.NewTransientError("listing api", fmt.Errorf("status %d", code))
	default:
		return fmt.Errorf("status %d: %s", code, util.Truncate(string(body), 200))
	}
}
