package util

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc.Selection
}

func TestChainFallsBackThroughSelectors(t *testing.T) {
	root := mustDoc(t, `
<div class="card">
  <h2 class="jobTitle"><span>  Senior   Go Engineer </span></h2>
  <div class="companyLocation">Berlin, Germany</div>
  <a class="jcs-JobTitle" href="/viewjob?jk=abc">link</a>
</div>`)

	tests := []struct {
		name  string
		chain Chain
		want  string
	}{
		{
			name:  "primary selector wins",
			chain: TextChain("h2.jobTitle span", "h2"),
			want:  "Senior Go Engineer",
		},
		{
			name:  "falls back to alternate",
			chain: TextChain("span.companyName", "div.companyLocation"),
			want:  "Berlin, Germany",
		},
		{
			name:  "default when nothing matches",
			chain: Chain{Steps: []Extractor{Text(".nope"), Text(".missing")}, Default: "n/a"},
			want:  "n/a",
		},
		{
			name:  "attribute step",
			chain: Chain{Steps: []Extractor{Attr{Selector: "a.jcs-JobTitle", Name: "href"}}},
			want:  "/viewjob?jk=abc",
		},
		{
			name: "accept predicate skips rejected values",
			chain: Chain{
				Steps:   []Extractor{Text("h2.jobTitle span"), Text("div.companyLocation")},
				Accept:  func(s string) bool { return strings.Contains(s, ",") },
				Default: "none",
			},
			want: "Berlin, Germany",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.chain.Eval(root))
		})
	}
}

func TestChainNilRoot(t *testing.T) {
	c := Chain{Steps: []Extractor{Text("p")}, Default: "x"}
	assert.Equal(t, "x", c.Eval(nil))
}

func TestLookup(t *testing.T) {
	root := mustDoc(t, `<ul class="results"><li>a</li><li>b</li></ul>`)

	sel, ok := Lookup(root, "div.cards > div", "ul.results > li")
	require.True(t, ok)
	assert.Equal(t, 2, sel.Length())

	_, ok = Lookup(root, "table", "section")
	assert.False(t, ok)
}

func TestBlockTextKeepsLines(t *testing.T) {
	root := mustDoc(t, `<div id="d"><p>About us</p><p>Work Location: Berlin</p>Remote ok<br>Apply now</div>`)
	got := Chain{Steps: []Extractor{Block("#d")}}.Eval(root)
	assert.Equal(t, "About us\nWork Location: Berlin\nRemote ok\nApply now", got)
}

func TestHasDigitAndMinLen(t *testing.T) {
	assert.True(t, HasDigit("$120k"))
	assert.False(t, HasDigit("Competitive"))
	assert.True(t, MinLen(3)("abcd"))
	assert.False(t, MinLen(3)("abc"))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b c", CleanText("  a  b\n\tc "))
	// decomposed e + combining acute becomes the composed rune
	assert.Equal(t, "caf\u00e9", CleanText("cafe\u0301"))
}

func TestLabeledValue(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "found", text: "Intro\nWork Location: Berlin\nMore", want: "Berlin"},
		{name: "case sensitive", text: "work location: Berlin", want: ""},
		{name: "must be a prefix", text: "Our Work Location: Berlin", want: ""},
		{name: "skips empty value", text: "Work Location:\nWork Location:  Hamburg ", want: "Hamburg"},
		{name: "absent", text: "nothing here", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LabeledValue(tt.text, "Work Location:"))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate(" short\n", 10))
	assert.Equal(t, "one two...", Truncate("one\ntwo three", 7))

	// "é" is two bytes; a cut at an odd offset lands inside one
	s := "a" + strings.Repeat("é", 10)
	got := Truncate(s, 4)
	assert.True(t, utf8.ValidString(got), got)
	assert.Equal(t, "aé...", got)

	got = Truncate("日本語のテキスト", 5)
	assert.True(t, utf8.ValidString(got), got)
	assert.Equal(t, "日...", got)

	assert.Equal(t, "...", Truncate("abc", 0))
}

func TestCanonicalizeURL(t *testing.T) {
	assert.Equal(t,
		"https://www.linkedin.com/jobs/view/123",
		CanonicalizeURL("HTTPS://WWW.LinkedIn.com/jobs/view/123?refId=x&trackingId=y#frag", "currentJobId"),
	)
	assert.Equal(t,
		"https://www.indeed.com/viewjob?jk=abc",
		CanonicalizeURL("https://www.indeed.com/viewjob?utm_source=x&jk=abc"),
	)
	assert.Equal(t, "", CanonicalizeURL("  "))
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://www.indeed.com/viewjob?jk=1", ResolveURL("https://www.indeed.com/jobs?q=go", "/viewjob?jk=1"))
	assert.Equal(t, "https://other/x", ResolveURL("https://www.indeed.com/", "https://other/x"))
}

func TestMatchesAny(t *testing.T) {
	walls := []string{"linkedin.com/authwall", "linkedin.com/login"}
	assert.True(t, MatchesAny("https://www.LinkedIn.com/authwall?trk=x", walls))
	assert.False(t, MatchesAny("https://www.linkedin.com/jobs/view/1", walls))
}

func TestRetryStopsAtBound(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Backoff{Attempts: 3, Interval: time.Millisecond}, nil, func(context.Context) error {
		calls++
		return errors.New("still failing")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrySucceedsEventually(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Backoff{Attempts: 3, Interval: time.Millisecond}, nil, func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryDoesNotRetryPermanentErrors(t *testing.T) {
	permanent := errors.New("denied")
	calls := 0
	err := Retry(context.Background(), Backoff{Attempts: 5, Interval: time.Millisecond},
		func(err error) bool { return !errors.Is(err, permanent) },
		func(context.Context) error {
			calls++
			return permanent
		})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, Backoff{Attempts: 3, Interval: time.Hour}, nil, func(context.Context) error {
		calls++
		cancel()
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Interval: 100 * time.Millisecond, Multiplier: 2, Max: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, b.delay(1))
	assert.Equal(t, 200*time.Millisecond, b.delay(2))
	assert.Equal(t, 300*time.Millisecond, b.delay(3))
}

func TestPacerSpacesCalls(t *testing.T) {
	p := NewPacer(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestPacerDisabled(t *testing.T) {
	p := NewPacer(0)
	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}
