package rank

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"jobfinder-engine/internal/config"
	"jobfinder-engine/internal/domain"
)

// KeywordScorer is a local capability: a job is relevant when its text
// mentions the requested position or one of the skills, its location fits,
// and the configured rules score it at least MinScore.
type KeywordScorer struct {
	TitleRules   []config.Rule
	KeywordRules []config.Rule
	Penalties    []config.Penalty
	MinScore     int
}

func NewKeywordScorer(cfg config.Config) KeywordScorer {
	return KeywordScorer{
		TitleRules:   cfg.Scoring.TitleRules,
		KeywordRules: cfg.Scoring.KeywordRules,
		Penalties:    cfg.Scoring.Penalties,
		MinScore:     cfg.Scoring.MinScore,
	}
}

func (s KeywordScorer) Name() string { return "keyword" }

func (s KeywordScorer) Score(ctx context.Context, req Request) ([]byte, error) {
	type scored struct {
		job   domain.Job
		score int
	}

	needles := criteriaNeedles(req.Criteria)
	where := strings.ToLower(strings.TrimSpace(req.Criteria.Location))

	var hits []scored
	for _, j := range req.Jobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := strings.ToLower(j.JobTitle + " " + j.Description)

		matched := 0
		for _, n := range needles {
			if strings.Contains(text, n) {
				matched++
			}
		}
		if len(needles) > 0 && matched == 0 {
			continue
		}
		if where != "" && !locationFits(strings.ToLower(j.Location), where) {
			continue
		}

		score := s.rate(text) + matched
		if score < s.MinScore {
			continue
		}
		hits = append(hits, scored{job: j, score: score})
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	out := relevantJobs{RelevantJobs: make([]domain.Job, 0, len(hits))}
	for _, h := range hits {
		out.RelevantJobs = append(out.RelevantJobs, h.job)
	}
	return json.Marshal(out)
}

// rate applies the configured rules. Each rule counts at most once.
func (s KeywordScorer) rate(text string) int {
	score := 0

	applyRules := func(rules []config.Rule) {
		for _, r := range rules {
			for _, needle := range r.Any {
				if strings.Contains(text, strings.ToLower(needle)) {
					score += r.Weight
					break
				}
			}
		}
	}
	applyRules(s.TitleRules)
	applyRules(s.KeywordRules)

	for _, p := range s.Penalties {
		for _, needle := range p.Any {
			if strings.Contains(text, strings.ToLower(needle)) {
				score += p.Weight
				break
			}
		}
	}

	return score
}

func criteriaNeedles(c domain.SearchCriteria) []string {
	var out []string
	if p := strings.ToLower(strings.TrimSpace(c.Position)); p != "" {
		out = append(out, p)
	}
	for _, sk := range strings.Split(c.Skills, ",") {
		if sk = strings.ToLower(strings.TrimSpace(sk)); sk != "" {
			out = append(out, sk)
		}
	}
	return out
}

// Remote postings fit any requested location.
func locationFits(jobLoc, want string) bool {
	return strings.Contains(jobLoc, want) || strings.Contains(jobLoc, "remote")
}
