package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"jobfinder-engine/internal/config"
	"jobfinder-engine/internal/domain"
	"jobfinder-engine/internal/poll"
)

type ScrapeHandler struct {
	Runner Runner
	Runs   RunLister
	Logger *slog.Logger
}

type scrapeReq struct {
	Position string `json:"position"`
	Location string `json:"location"`
	Pages    int    `json:"pages"`
}

// Run blocks until the pass finishes. Dropping the connection cancels it;
// jobs appended so far are kept.
func (h ScrapeHandler) Run(c *gin.Context) {
	var req scrapeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteError(c, http.StatusBadRequest, "invalid_json", "request body must be a JSON object")
		return
	}
	req.Position = strings.TrimSpace(req.Position)
	req.Location = strings.TrimSpace(req.Location)
	if req.Position == "" || req.Location == "" {
		WriteError(c, http.StatusBadRequest, "invalid_request", "Position and location are required.")
		return
	}
	if req.Pages < 0 || req.Pages > 50 {
		WriteError(c, http.StatusBadRequest, "invalid_request", "pages must be between 0 and 50")
		return
	}

	res, err := h.Runner.Run(c.Request.Context(), config.Query{Position: req.Position, Location: req.Location, Pages: req.Pages})
	switch {
	case errors.Is(err, poll.ErrBusy):
		WriteError(c, http.StatusConflict, "scrape_running", err.Error())
		return
	case errors.Is(err, domain.ErrInvalidRequest):
		WriteError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	case err != nil:
		h.Logger.Error("scrape failed", "request_id", RequestIDFrom(c), "err", err)
		WriteError(c, http.StatusInternalServerError, "scrape_failed", "scrape failed")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h ScrapeHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.Runner.Status())
}

func (h ScrapeHandler) Cancel(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cancelled": h.Runner.Cancel()})
}

func (h ScrapeHandler) History(c *gin.Context) {
	if h.Runs == nil {
		WriteError(c, http.StatusServiceUnavailable, "ledger_disabled", "run history is not enabled")
		return
	}
	limit := 20
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			WriteError(c, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = min(n, 200)
	}

	runs, err := h.Runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.Logger.Error("list runs", "err", err)
		WriteError(c, http.StatusInternalServerError, "db_error", "could not read run history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
