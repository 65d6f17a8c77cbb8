// Package indeed scrapes the public Indeed search and viewjob pages.
package indeed

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobfinder-engine/internal/browser"
	"jobfinder-engine/internal/domain"
	"jobfinder-engine/internal/scrape/types"
	"jobfinder-engine/internal/scrape/util"
)

const (
	DefaultBaseURL = "https://www.indeed.com"
	pageSize       = 10
)

// Walls are final-URL fragments that mean Indeed wants a login.
var Walls = []string{"/account/login", "secure.indeed.com/auth"}

var (
	cardSelectors     = []string{"div.job_seen_beacon", "div.cardOutline"}
	noResultSelectors = []string{"div.jobsearch-NoResult", "div.jobsearch-NoResult-messageContainer"}
	nextSelectors     = []string{`a[data-testid="pagination-page-next"]`, `a[aria-label="Next Page"]`, `a[aria-label="Next"]`}
)

// card fields
var (
	cardTitle    = util.TextChain("h2.jobTitle span[title]", "h2.jobTitle span", "h2.jobTitle")
	cardCompany  = util.TextChain(`span[data-testid="company-name"]`, "span.companyName")
	cardLocation = util.TextChain(`div[data-testid="text-location"]`, "div.companyLocation")
	cardSalary   = util.TextChain("div.salary-snippet-container", "div.estimated-salary", "span.estimated-salary",
		`div[data-testid="attribute_snippet_testid"]`)
	cardSnippet = util.Chain{Steps: []util.Extractor{util.Block("div.job-snippet ul"), util.Block("div.job-snippet")}}
	cardJobKey  = util.Chain{Steps: []util.Extractor{
		util.Attr{Selector: "a[data-jk]", Name: "data-jk"},
		util.Attr{Selector: "a.jcs-JobTitle", Name: "data-jk"},
	}}
	cardHref = util.Chain{Steps: []util.Extractor{
		util.Attr{Selector: "a.jcs-JobTitle", Name: "href"},
		util.Attr{Selector: "h2.jobTitle a", Name: "href"},
	}}
)

// viewjob fields
var (
	detailTitle = util.TextChain(`h1[data-testid="jobsearch-JobInfoHeader-title"]`,
		"h1.jobsearch-JobInfoHeader-title", "h2.jobsearch-JobInfoHeader-title")
	detailCompany = util.TextChain(`div[data-testid="inlineHeader-companyName"]`,
		`div[data-company-name="true"]`, "div.jobsearch-CompanyInfoContainer a")
	detailLocation = util.TextChain(`div[data-testid="inlineHeader-companyLocation"]`,
		`div[data-testid="job-location"]`, "div.jobsearch-JobInfoHeader-subtitle > div:last-child")
	detailSalary = util.Chain{
		Steps: []util.Extractor{
			util.Text("#salaryInfoAndJobType span"),
			util.Text(`div[data-testid="jobsearch-OtherJobDetailsContainer"] span`),
		},
		Accept: util.HasDigit,
	}
	detailDescription = util.Chain{Steps: []util.Extractor{
		util.Block("#jobDescriptionText"),
		util.Block("div.jobsearch-jobDescriptionText"),
	}}
)

type Config struct {
	BaseURL string
}

type Scraper struct {
	base    string
	fetcher browser.Fetcher
}

func New(cfg Config, f browser.Fetcher) *Scraper {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Scraper{base: base, fetcher: f}
}

func (s *Scraper) Source() domain.Source { return domain.SourceIndeed }
func (s *Scraper) PageSize() int         { return pageSize }

// ElementLookup returns the first non-empty match among equivalent selectors.
func (s *Scraper) ElementLookup(doc *goquery.Document, selectors ...string) (*goquery.Selection, bool) {
	if doc == nil {
		return nil, false
	}
	return util.Lookup(doc.Selection, selectors...)
}

func (s *Scraper) searchURL(q types.Query, offset int) string {
	v := url.Values{}
	v.Set("q", q.Position)
	v.Set("l", q.Location)
	v.Set("start", strconv.Itoa(offset))
	return s.base + "/jobs?" + v.Encode()
}

func (s *Scraper) ListPage(ctx context.Context, q types.Query, offset int) (types.Page, error) {
	doc, page, err := browser.Load(ctx, s.fetcher, s.searchURL(q, offset), Walls)
	if err != nil {
		return types.Page{}, fmt.Errorf("indeed: list offset %d: %w", offset, err)
	}

	cards, ok := s.ElementLookup(doc, cardSelectors...)
	if !ok {
		if _, empty := s.ElementLookup(doc, noResultSelectors...); empty {
			return types.Page{}, nil
		}
		// usually a challenge page or a render that did not finish
		return types.Page{}, domain.NewTransientError("indeed: list", fmt.Errorf("no job cards at %s", page.URL))
	}

	var out types.Page
	cards.Each(func(_ int, card *goquery.Selection) {
		if ref, ok := s.candidate(page.URL, card); ok {
			out.Candidates = append(out.Candidates, ref)
		}
	})
	_, out.HasMore = s.ElementLookup(doc, nextSelectors...)
	return out, nil
}

func (s *Scraper) candidate(pageURL string, card *goquery.Selection) (types.CandidateRef, bool) {
	var link string
	if jk, ok := cardJobKey.Find(card); ok {
		link = s.base + "/viewjob?jk=" + url.QueryEscape(jk)
	} else if href, ok := cardHref.Find(card); ok {
		link = util.CanonicalizeURL(util.ResolveURL(pageURL, href), "jk")
		if u, err := url.Parse(link); err == nil && u.Query().Get("jk") != "" {
			link = s.base + "/viewjob?jk=" + url.QueryEscape(u.Query().Get("jk"))
		}
	}
	if link == "" {
		return types.CandidateRef{}, false
	}

	hint := map[string]string{types.FieldApplyLink: link}
	put := func(key string, c util.Chain) {
		if v, ok := c.Find(card); ok {
			hint[key] = v
		}
	}
	put(types.FieldTitle, cardTitle)
	put(types.FieldCompany, cardCompany)
	put(types.FieldLocation, cardLocation)
	put(types.FieldSalary, cardSalary)
	put(types.FieldDescription, cardSnippet)

	return types.CandidateRef{Key: link, URL: link, Hint: hint}, true
}

// FetchDetail loads the viewjob page. Values found there override the card
// hints; the apply link stays the viewjob URL.
func (s *Scraper) FetchDetail(ctx context.Context, ref types.CandidateRef) (types.RawRecord, error) {
	doc, _, err := browser.Load(ctx, s.fetcher, ref.URL, Walls)
	if err != nil {
		return types.RawRecord{}, fmt.Errorf("indeed: detail: %w", err)
	}

	data := make(map[string]any, 6)
	for k, v := range ref.Hint {
		data[k] = v
	}
	root := doc.Selection
	for key, c := range map[string]util.Chain{
		types.FieldTitle:       detailTitle,
		types.FieldCompany:     detailCompany,
		types.FieldLocation:    detailLocation,
		types.FieldSalary:      detailSalary,
		types.FieldDescription: detailDescription,
	} {
		if v, ok := c.Find(root); ok {
			data[key] = v
		}
	}
	if _, ok := data[types.FieldApplyLink]; !ok {
		data[types.FieldApplyLink] = ref.URL
	}
	return types.RawRecord{Source: s.Source(), Data: data}, nil
}
