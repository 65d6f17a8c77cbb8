// Package browser is the page-fetch capability used by the markup adapters:
// load a URL, follow redirects, hand back the final URL and markup.
package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobfinder-engine/internal/domain"
)

const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Page is a loaded document. URL is where navigation ended up after
// redirects, which is what access-wall detection looks at.
type Page struct {
	URL    string
	Status int
	HTML   string
}

// Document parses the page markup for element queries.
func (p *Page) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", domain.ErrMalformedResponse, err)
	}
	return doc, nil
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// HTTPFetcher loads pages with a plain HTTP client and a cookie jar.
type HTTPFetcher struct {
	hc        *http.Client
	userAgent string
}

func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	jar, _ := cookiejar.New(nil)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPFetcher{
		hc:        &http.Client{Jar: jar, Timeout: timeout},
		userAgent: userAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	res, err := f.hc.Do(req)
	if err != nil {
		return nil, domain.NewTransientError("fetch page", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return nil, domain.NewTransientError("read page", err)
	}

	page := &Page{URL: res.Request.URL.String(), Status: res.StatusCode, HTML: string(body)}
	return page, StatusError(page)
}

// StatusError maps a page's HTTP status onto the error taxonomy. Access
// walls by URL are the adapter's call, since the patterns are per site.
func StatusError(p *Page) error {
	switch {
	case p.Status == 0 || p.Status < 400:
		return nil
	case p.Status == http.StatusNotFound || p.Status == http.StatusGone:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, p.URL)
	case p.Status == http.StatusUnauthorized || p.Status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d at %s", domain.ErrAccessDenied, p.Status, p.URL)
	case p.Status == http.StatusTooManyRequests || p.Status >= 500:
		return domain.NewTransientError("fetch page", fmt.Errorf("status %d", p.Status))
	default:
		return fmt.Errorf("page status %d at %s", p.Status, p.URL)
	}
}

// Load fetches url and parses it. A final URL matching any of walls is
// reported as domain.ErrAccessDenied before the status is looked at, since
// login redirects often land on a 200.
func Load(ctx context.Context, f Fetcher, url string, walls []string) (*goquery.Document, *Page, error) {
	page, err := f.Fetch(ctx, url)
	if page != nil && page.URL != "" && matchesWall(page.URL, walls) {
		return nil, page, fmt.Errorf("%w: redirected to %s", domain.ErrAccessDenied, page.URL)
	}
	if err != nil {
		return nil, page, err
	}
	doc, err := page.Document()
	if err != nil {
		return nil, page, err
	}
	return doc, page, nil
}

func matchesWall(u string, walls []string) bool {
	low := strings.ToLower(u)
	for _, w := range walls {
		if w != "" && strings.Contains(low, strings.ToLower(w)) {
			return true
		}
	}
	return false
}
