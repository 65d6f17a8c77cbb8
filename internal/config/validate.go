package config

import (
	"fmt"
	"strings"
	"time"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

func (v Validation) Error() string {
	return "config validation failed:\n- " + strings.Join(v.Errors, "\n- ")
}

// NormalizeAndValidate returns a normalized copy of cfg and what is wrong
// with it. Callers refuse to start on errors and log warnings.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	out.Logging.Level = strings.ToLower(strings.TrimSpace(out.Logging.Level))
	out.Logging.Format = strings.ToLower(strings.TrimSpace(out.Logging.Format))
	out.Browser.Engine = strings.ToLower(strings.TrimSpace(out.Browser.Engine))
	out.Scoring.Provider = strings.ToLower(strings.TrimSpace(out.Scoring.Provider))
	out.Schedule.Queries = trimQueries(out.Schedule.Queries)

	if out.Server.Port <= 0 || out.Server.Port > 65535 {
		res.addErr("server.port must be 1..65535")
	}

	switch out.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		res.addErr("logging.level must be debug, info, warn or error (got %q)", out.Logging.Level)
	}
	switch out.Logging.Format {
	case "text", "json":
	default:
		res.addErr("logging.format must be text or json (got %q)", out.Logging.Format)
	}

	if strings.TrimSpace(out.Storage.CorpusPath) == "" {
		res.addErr("storage.corpus_path is required")
	}
	if out.Storage.LockTimeout <= 0 {
		res.addErr("storage.lock_timeout must be > 0")
	}

	p := out.Pipeline
	if p.TargetCandidates <= 0 {
		res.addErr("pipeline.target_candidates must be > 0")
	}
	if p.DefaultPageBudget <= 0 {
		res.addErr("pipeline.default_page_budget must be > 0")
	}
	if p.Concurrency <= 0 {
		res.addErr("pipeline.concurrency must be > 0")
	}
	if p.CallTimeout <= 0 {
		res.addErr("pipeline.call_timeout must be > 0")
	}
	if p.PolitenessDelay < 500*time.Millisecond {
		res.addWarn("pipeline.politeness_delay is very low (%s) and may get sources to block you.", p.PolitenessDelay)
	}
	if p.Retry.Attempts < 1 {
		res.addErr("pipeline.retry.attempts must be >= 1")
	} else if p.Retry.Attempts > 10 {
		res.addWarn("pipeline.retry.attempts is %d; failing pages will be slow to give up.", p.Retry.Attempts)
	}

	s := out.Sources
	if !s.ListingAPI.Enabled && !s.Indeed.Enabled && !s.LinkedIn.Enabled {
		res.addErr("no sources enabled: enable sources.listing_api, sources.indeed or sources.linkedin")
	}
	if s.ListingAPI.Enabled && strings.TrimSpace(s.ListingAPI.BaseURL) == "" {
		res.addErr("sources.listing_api.base_url is required when enabled")
	}

	switch out.Browser.Engine {
	case "http", "playwright":
	default:
		res.addErr("browser.engine must be http or playwright (got %q)", out.Browser.Engine)
	}

	sc := out.Scoring
	switch sc.Provider {
	case "llm":
		if strings.TrimSpace(sc.Model) == "" {
			res.addErr("scoring.model is required when scoring.provider=llm")
		}
	case "keyword":
		if len(sc.TitleRules)+len(sc.KeywordRules) == 0 {
			res.addWarn("scoring.provider=keyword with no rules; every search will come back empty.")
		}
	case "none":
		res.addWarn("scoring.provider=none; searches with criteria will report the capability as unavailable.")
	default:
		res.addErr("scoring.provider must be llm, keyword or none (got %q)", sc.Provider)
	}
	if sc.UnfilteredLimit <= 0 {
		res.addErr("scoring.unfiltered_limit must be > 0")
	}
	if sc.Temperature < 0 || sc.Temperature > 2 {
		res.addErr("scoring.temperature must be within 0..2")
	}

	checkRules := func(name string, rules []Rule) {
		for i, r := range rules {
			if r.Tag == "" {
				res.addErr("%s[%d].tag is required", name, i)
			}
			if len(r.Any) == 0 {
				res.addErr("%s[%d].any must have at least 1 term", name, i)
			}
			for j, term := range r.Any {
				if strings.TrimSpace(term) == "" {
					res.addErr("%s[%d].any[%d] cannot be empty", name, i, j)
				}
			}
		}
	}
	checkRules("scoring.title_rules", sc.TitleRules)
	checkRules("scoring.keyword_rules", sc.KeywordRules)
	for i, pen := range sc.Penalties {
		if pen.Reason == "" {
			res.addErr("scoring.penalties[%d].reason is required", i)
		}
		if len(pen.Any) == 0 {
			res.addErr("scoring.penalties[%d].any must have at least 1 term", i)
		}
	}

	if out.Schedule.Enabled {
		if out.Schedule.Interval <= 0 {
			res.addErr("schedule.interval must be > 0 when schedule.enabled=true")
		}
		if len(out.Schedule.Queries) == 0 {
			res.addWarn("schedule.enabled=true but schedule.queries is empty; nothing will run.")
		}
	}
	for i, q := range out.Schedule.Queries {
		if q.Position == "" || q.Location == "" {
			res.addErr("schedule.queries[%d] needs both position and location", i)
		}
	}

	return out, res
}

func trimQueries(qs []Query) []Query {
	seen := map[string]bool{}
	var out []Query
	for _, q := range qs {
		q.Position = strings.TrimSpace(q.Position)
		q.Location = strings.TrimSpace(q.Location)
		key := strings.ToLower(q.Position + "\x00" + q.Location)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}
