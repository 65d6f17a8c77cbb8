package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobfinder-engine/internal/domain"
	"jobfinder-engine/internal/rank"
)

type JobsHandler struct {
	Searcher Searcher
	Corpus   rank.CorpusLoader
}

// Search accepts an empty body as empty criteria.
func (h JobsHandler) Search(c *gin.Context) {
	var crit domain.SearchCriteria
	if err := c.ShouldBindJSON(&crit); err != nil && !errors.Is(err, io.EOF) {
		WriteError(c, http.StatusBadRequest, "invalid_json", "request body must be a JSON object")
		return
	}

	res := h.Searcher.Search(c.Request.Context(), crit)
	if res.Status == rank.StatusError {
		WriteError(c, http.StatusInternalServerError, "search_failed", res.Message)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h JobsHandler) List(c *gin.Context) {
	jobs, err := h.Corpus.Load(c.Request.Context())
	if err != nil && !errors.Is(err, domain.ErrStorageCorruption) {
		WriteError(c, http.StatusInternalServerError, "db_error", "could not read the job database")
		return
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}
