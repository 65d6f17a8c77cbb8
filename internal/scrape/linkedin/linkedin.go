// Package linkedin scrapes LinkedIn's logged-out job search.
package linkedin

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobfinder-engine/internal/browser"
	"jobfinder-engine/internal/domain"
	"jobfinder-engine/internal/scrape/types"
	"jobfinder-engine/internal/scrape/util"
)

const (
	DefaultBaseURL = "https://www.linkedin.com"
	pageSize       = 25
)

// DefaultWalls are final-URL fragments for LinkedIn's sign-in interstitials.
var DefaultWalls = []string{"linkedin.com/login", "linkedin.com/authwall", "linkedin.com/checkpoint"}

var reJobID = regexp.MustCompile(`/jobs/view/(?:[^/?#]*-)?(\d+)`)

var (
	listSelectors = []string{"ul.jobs-search__results-list", "ul.jobs-search-results__list"}
	cardSelectors = []string{"ul.jobs-search__results-list > li", "ul.jobs-search-results__list > li"}
)

var (
	cardTitle    = util.TextChain("h3.base-search-card__title", "a.base-card__full-link span.sr-only")
	cardCompany  = util.TextChain("h4.base-search-card__subtitle a", "h4.base-search-card__subtitle")
	cardLocation = util.TextChain("span.job-search-card__location")
	cardSalary   = util.Chain{Steps: []util.Extractor{util.Text("span.job-search-card__salary-info")}, Accept: util.HasDigit}
	cardLink     = util.Chain{Steps: []util.Extractor{
		util.Attr{Selector: "a.base-card__full-link", Name: "href"},
		util.Attr{Selector: "a.base-card--link", Name: "href"},
		util.Attr{Selector: "a[href*='/jobs/view/']", Name: "href"},
	}}
)

var (
	detailTitle    = util.TextChain("h1.top-card-layout__title", "h2.top-card-layout__title", "h1.topcard__title")
	detailCompany  = util.TextChain("a.topcard__org-name-link", "span.topcard__flavor a", "span.topcard__flavor")
	detailLocation = util.TextChain("span.topcard__flavor--bullet", "span.topcard__flavor.topcard__flavor--bullet")

	// Short matches are usually a "see more" stub rather than the posting.
	detailDescription = util.Chain{
		Steps: []util.Extractor{
			util.Block("div.description__text--rich section.jobs-description"),
			util.Block("div.jobs-description__content div.show-more-less-html__markup"),
			util.Block("section.jobs-description .show-more-less-html__markup"),
			util.Block("div.description__text"),
			util.Block("#job-details"),
		},
		Accept: util.MinLen(50),
	}
	detailSalary = util.Chain{
		Steps: []util.Extractor{
			util.Text("div.job-details-jobs-unified-top-card__job-insight span.tvm__text"),
			util.Text("span.jobs-unified-top-card__salary-info"),
			util.Text("li.job-details-jobs-unified-top-card__job-insight:nth-of-type(1) > span"),
			util.Text("div.salary.compensation__salary"),
		},
		Accept: util.HasDigit,
	}
)

type Config struct {
	BaseURL string
	Walls   []string
}

type Scraper struct {
	base    string
	walls   []string
	fetcher browser.Fetcher
}

func New(cfg Config, f browser.Fetcher) *Scraper {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	walls := cfg.Walls
	if len(walls) == 0 {
		walls = DefaultWalls
	}
	return &Scraper{base: base, walls: walls, fetcher: f}
}

func (s *Scraper) Source() domain.Source { return domain.SourceLinkedIn }
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
	v.Set("keywords", q.Position)
	v.Set("location", q.Location)
	v.Set("start", strconv.Itoa(offset))
	return s.base + "/jobs/search/?" + v.Encode()
}

func (s *Scraper) ListPage(ctx context.Context, q types.Query, offset int) (types.Page, error) {
	doc, page, err := browser.Load(ctx, s.fetcher, s.searchURL(q, offset), s.walls)
	if err != nil {
		return types.Page{}, fmt.Errorf("linkedin: list offset %d: %w", offset, err)
	}

	cards, ok := s.ElementLookup(doc, cardSelectors...)
	if !ok {
		if _, listed := s.ElementLookup(doc, listSelectors...); listed {
			// results list rendered but empty: past the last page
			return types.Page{}, nil
		}
		return types.Page{}, domain.NewTransientError("linkedin: list", fmt.Errorf("no results list at %s", page.URL))
	}

	var out types.Page
	cards.Each(func(_ int, card *goquery.Selection) {
		if ref, ok := s.candidate(page.URL, card); ok {
			out.Candidates = append(out.Candidates, ref)
		}
	})
	out.HasMore = cards.Length() > 0
	return out, nil
}

func (s *Scraper) candidate(pageURL string, card *goquery.Selection) (types.CandidateRef, bool) {
	href, ok := cardLink.Find(card)
	if !ok {
		return types.CandidateRef{}, false
	}
	link := jobURL(util.ResolveURL(pageURL, href))
	if link == "" {
		return types.CandidateRef{}, false
	}

	key := link
	if m := reJobID.FindStringSubmatch(link); m != nil {
		key = "linkedin:" + m[1]
	}

	hint := map[string]string{types.FieldApplyLink: link}
	put := func(k string, c util.Chain) {
		if v, ok := c.Find(card); ok {
			hint[k] = v
		}
	}
	put(types.FieldTitle, cardTitle)
	put(types.FieldCompany, cardCompany)
	put(types.FieldLocation, cardLocation)
	put(types.FieldSalary, cardSalary)

	return types.CandidateRef{Key: key, URL: link, Hint: hint}, true
}

// jobURL drops the tracking query LinkedIn hangs off every card link.
func jobURL(raw string) string {
	u, err := url.Parse(util.CanonicalizeURL(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	u.RawQuery = ""
	return u.String()
}

// FetchDetail loads the posting page. The description and salary chains only
// take substantial matches; card hints fill whatever the page lacks.
func (s *Scraper) FetchDetail(ctx context.Context, ref types.CandidateRef) (types.RawRecord, error) {
	doc, _, err := browser.Load(ctx, s.fetcher, ref.URL, s.walls)
	if err != nil {
		return types.RawRecord{}, fmt.Errorf("linkedin: detail: %w", err)
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
