package rank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"jobfinder-engine/internal/domain"
	"jobfinder-engine/internal/scrape/util"
)

type Status string

const (
	StatusOK                    Status = "ok"
	StatusUnfiltered            Status = "unfiltered"
	StatusCapabilityUnavailable Status = "capability_unavailable"
	StatusMalformedResponse     Status = "malformed_response"
	StatusError                 Status = "error"
)

const (
	DefaultUnfilteredLimit = 50
	DefaultTimeout         = 60 * time.Second
)

type Result struct {
	Jobs    []domain.Job
	Status  Status
	Message string
}

// Filter is the bridge between the stored corpus and a relevance
// capability. It never modifies the corpus it is handed.
type Filter struct {
	capability Capability
	limit      int
	timeout    time.Duration
	log        *slog.Logger
}

type FilterOption func(*Filter)

func WithUnfilteredLimit(n int) FilterOption {
	return func(f *Filter) {
		if n > 0 {
			f.limit = n
		}
	}
}

func WithTimeout(d time.Duration) FilterOption {
	return func(f *Filter) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithFilterLogger(l *slog.Logger) FilterOption {
	return func(f *Filter) {
		if l != nil {
			f.log = l
		}
	}
}

// NewFilter wraps c. A nil capability is allowed and reported as
// unavailable whenever criteria are given.
func NewFilter(c Capability, opts ...FilterOption) *Filter {
	f := &Filter{
		capability: c,
		limit:      DefaultUnfilteredLimit,
		timeout:    DefaultTimeout,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Filter) UnfilteredLimit() int { return f.limit }

func (f *Filter) Filter(ctx context.Context, corpus []domain.Job, criteria domain.SearchCriteria) Result {
	if criteria.IsEmpty() {
		n := min(len(corpus), f.limit)
		return Result{Jobs: append([]domain.Job{}, corpus[:n]...), Status: StatusUnfiltered}
	}
	if len(corpus) == 0 {
		return Result{Jobs: []domain.Job{}, Status: StatusOK}
	}
	if f.capability == nil {
		return Result{
			Jobs:    []domain.Job{},
			Status:  StatusCapabilityUnavailable,
			Message: "Relevance scoring is not configured.",
		}
	}

	log := f.log.With("capability", f.capability.Name())
	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	body, err := f.capability.Score(cctx, Request{Jobs: slices.Clone(corpus), Criteria: criteria})
	if err != nil {
		log.Warn("relevance capability failed", "err", err, "duration_ms", time.Since(start).Milliseconds())
		msg := "Relevance scoring is unavailable: " + err.Error()
		if errors.Is(err, domain.ErrMalformedResponse) {
			return Result{Jobs: []domain.Job{}, Status: StatusMalformedResponse, Message: msg}
		}
		return Result{Jobs: []domain.Job{}, Status: StatusCapabilityUnavailable, Message: msg}
	}

	jobs, dropped, err := parseRelevant(body)
	if err != nil {
		log.Warn("relevance response rejected", "err", err, "body", util.Truncate(string(body), 300))
		return Result{
			Jobs:    []domain.Job{},
			Status:  StatusMalformedResponse,
			Message: "The relevance capability returned an unexpected response.",
		}
	}
	if dropped > 0 {
		log.Warn("dropped invalid records from relevance response", "dropped", dropped)
	}
	log.Debug("relevance filter done", "in", len(corpus), "out", len(jobs), "duration_ms", time.Since(start).Milliseconds())
	return Result{Jobs: jobs, Status: StatusOK}
}

var reFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)\\n?```$")

// stripFences removes a markdown code fence wrapped around the whole body.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := reFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// parseRelevant accepts only {"relevant_jobs":[...]}. Elements that are not
// valid jobs are dropped and counted.
func parseRelevant(body []byte) ([]domain.Job, int, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(string(body))), &top); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	raw, ok := top["relevant_jobs"]
	if !ok {
		return nil, 0, fmt.Errorf("%w: missing relevant_jobs", domain.ErrMalformedResponse)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, 0, fmt.Errorf("%w: relevant_jobs is not a list", domain.ErrMalformedResponse)
	}

	jobs := make([]domain.Job, 0, len(items))
	dropped := 0
	for _, it := range items {
		var j domain.Job
		if err := json.Unmarshal(it, &j); err != nil || j.Validate() != nil {
			dropped++
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, dropped, nil
}

