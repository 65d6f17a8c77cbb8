package rank

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobfinder-engine/internal/domain"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// stubCapability answers with a fixed body or error and counts calls.
type stubCapability struct {
	body  string
	err   error
	delay time.Duration
	calls atomic.Int32
	seen  Request
}

func (s *stubCapability) Name() string { return "stub" }

func (s *stubCapability) Score(ctx context.Context, req Request) ([]byte, error) {
	s.calls.Add(1)
	s.seen = req
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []byte(s.body), s.err
}

func corpusOf(n int) []domain.Job {
	out := make([]domain.Job, n)
	for i := range out {
		out[i] = domain.Job{
			JobTitle:  fmt.Sprintf("Job %d", i),
			Company:   "Acme",
			Location:  "Berlin",
			Salary:    domain.SalaryNotSpecified,
			ApplyLink: fmt.Sprintf("http://x/%d", i),
			Source:    domain.SourceIndeed,
		}
	}
	return out
}

func TestEmptyCriteriaReturnsFirstFifty(t *testing.T) {
	capab := &stubCapability{}
	f := NewFilter(capab, WithFilterLogger(quiet()))
	corpus := corpusOf(80)

	res := f.Filter(context.Background(), corpus, domain.SearchCriteria{Position: "   "})
	assert.Equal(t, StatusUnfiltered, res.Status)
	require.Len(t, res.Jobs, 50)
	assert.Equal(t, corpus[:50], res.Jobs)
	assert.Zero(t, capab.calls.Load(), "no capability call without criteria")

	small := f.Filter(context.Background(), corpusOf(3), domain.SearchCriteria{})
	assert.Len(t, small.Jobs, 3)

	none := f.Filter(context.Background(), nil, domain.SearchCriteria{})
	assert.NotNil(t, none.Jobs)
	assert.Empty(t, none.Jobs)
}

func TestEmptyCorpusSkipsCapability(t *testing.T) {
	capab := &stubCapability{}
	res := NewFilter(capab).Filter(context.Background(), nil, domain.SearchCriteria{Position: "go"})
	assert.Equal(t, StatusOK, res.Status)
	assert.Empty(t, res.Jobs)
	assert.Zero(t, capab.calls.Load())
}

func TestRelevantJobsAreRevalidated(t *testing.T) {
	capab := &stubCapability{body: "```json\n" + `{"relevant_jobs": [
		{"job_title":"Go Dev","company":"Acme","location":"Berlin","salary":"Not specified","description":"","apply_link":"http://x/1","source":"indeed"},
		{"job_title":"Missing company","location":"Berlin","apply_link":"http://x/2","source":"indeed"},
		"not an object",
		{"job_title":"Rust Dev","company":"Beta","location":"Remote","apply_link":"http://x/3","source":"linkedin","score":0.9}
	]}` + "\n```"}
	f := NewFilter(capab, WithFilterLogger(quiet()))

	corpus := corpusOf(5)
	snapshot := append([]domain.Job(nil), corpus...)

	res := f.Filter(context.Background(), corpus, domain.SearchCriteria{Position: "developer"})
	assert.Equal(t, StatusOK, res.Status)
	require.Len(t, res.Jobs, 2)
	assert.Equal(t, "Go Dev", res.Jobs[0].JobTitle)
	assert.Equal(t, domain.SourceLinkedIn, res.Jobs[1].Source)

	assert.Equal(t, snapshot, corpus, "corpus is not mutated")
	assert.Equal(t, "developer", capab.seen.Criteria.Position)
	assert.Len(t, capab.seen.Jobs, 5)
}

func TestMalformedCapabilityResponses(t *testing.T) {
	for _, body := range []string{
		`{"unexpected": []}`,
		`{"relevant_jobs": {"job_title": "x"}}`,
		`{"relevant_jobs": null}`,
		`[{"job_title": "x"}]`,
		`Sorry, I cannot help with that.`,
		``,
	} {
		capab := &stubCapability{body: body}
		res := NewFilter(capab, WithFilterLogger(quiet())).Filter(context.Background(), corpusOf(2), domain.SearchCriteria{Skills: "go"})
		assert.Equal(t, StatusMalformedResponse, res.Status, body)
		assert.NotNil(t, res.Jobs, body)
		assert.Empty(t, res.Jobs, body)
	}
}

func TestRejectedBodyIsLoggedOnRuneBoundary(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	body := "x" + strings.Repeat("é", 200)
	capab := &stubCapability{body: body}
	res := NewFilter(capab, WithFilterLogger(logger)).Filter(context.Background(), corpusOf(1), domain.SearchCriteria{Skills: "go"})

	assert.Equal(t, StatusMalformedResponse, res.Status)
	assert.Contains(t, buf.String(), "relevance response rejected")
	assert.Contains(t, buf.String(), "é...")
	assert.NotContains(t, buf.String(), `\ufffd`)
}

func TestCapabilityUnavailable(t *testing.T) {
	ctx := context.Background()
	crit := domain.SearchCriteria{Location: "Berlin"}

	res := NewFilter(nil).Filter(ctx, corpusOf(2), crit)
	assert.Equal(t, StatusCapabilityUnavailable, res.Status)
	assert.Empty(t, res.Jobs)

	capab := &stubCapability{err: fmt.Errorf("%w: no key", domain.ErrCapabilityUnavailable)}
	res = NewFilter(capab, WithFilterLogger(quiet())).Filter(ctx, corpusOf(2), crit)
	assert.Equal(t, StatusCapabilityUnavailable, res.Status)
	assert.Contains(t, res.Message, "no key")

	capab = &stubCapability{err: errors.New("connection refused")}
	res = NewFilter(capab, WithFilterLogger(quiet())).Filter(ctx, corpusOf(2), crit)
	assert.Equal(t, StatusCapabilityUnavailable, res.Status)
	assert.Contains(t, res.Message, "connection refused")
}

func TestCapabilityTimeout(t *testing.T) {
	capab := &stubCapability{body: `{"relevant_jobs":[]}`, delay: time.Second}
	f := NewFilter(capab, WithTimeout(20*time.Millisecond), WithFilterLogger(quiet()))

	start := time.Now()
	res := f.Filter(context.Background(), corpusOf(1), domain.SearchCriteria{Position: "go"})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, StatusCapabilityUnavailable, res.Status)
	assert.Empty(t, res.Jobs)
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":       `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
		"text ```json {} ```":     "text ```json {} ```",
	}
	for in, want := range cases {
		assert.Equal(t, want, stripFences(in), in)
	}
}
