package rank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"jobfinder-engine/internal/domain"
)

// CorpusLoader is the read side of the corpus.
type CorpusLoader interface {
	Load(ctx context.Context) ([]domain.Job, error)
}

type SearchResult struct {
	RelevantJobs []domain.Job `json:"relevant_jobs"`
	TotalFound   int          `json:"total_found"`
	Status       Status       `json:"status"`
	Message      string       `json:"message,omitempty"`
}

type Searcher struct {
	corpus CorpusLoader
	filter *Filter
	log    *slog.Logger
}

func NewSearcher(c CorpusLoader, f *Filter, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{corpus: c, filter: f, log: logger}
}

// Search loads the corpus fresh and filters it. TotalFound is the corpus
// size for empty criteria and the number of relevant jobs otherwise.
func (s *Searcher) Search(ctx context.Context, criteria domain.SearchCriteria) SearchResult {
	jobs, err := s.corpus.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrStorageCorruption):
		s.log.Warn("corpus unreadable, searching as if empty", "err", err)
	case err != nil:
		s.log.Error("could not load corpus", "err", err)
		return SearchResult{RelevantJobs: []domain.Job{}, Status: StatusError, Message: "Could not read the job database."}
	}

	if len(jobs) == 0 {
		st := StatusOK
		if criteria.IsEmpty() {
			st = StatusUnfiltered
		}
		return SearchResult{
			RelevantJobs: []domain.Job{},
			Status:       st,
			Message:      "No jobs available in the database. Try running the scraper first.",
		}
	}

	res := s.filter.Filter(ctx, jobs, criteria)
	out := SearchResult{RelevantJobs: res.Jobs, Status: res.Status, Message: res.Message}
	if res.Status == StatusUnfiltered {
		out.TotalFound = len(jobs)
		out.Message = fmt.Sprintf("No search criteria provided; returning up to %d available jobs.", s.filter.UnfilteredLimit())
	} else {
		out.TotalFound = len(res.Jobs)
		if res.Status == StatusOK {
			out.Message = fmt.Sprintf("Found %d relevant jobs.", len(res.Jobs))
		}
	}
	s.log.Info("search done", "status", out.Status, "corpus", len(jobs), "relevant", len(out.RelevantJobs))
	return out
}
