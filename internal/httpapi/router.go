package httpapi

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter wires every endpoint onto a fresh gin engine.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	r := gin.New()
	// span first so panics and access logs carry the trace
	if d.ServiceName != "" {
		r.Use(otelgin.Middleware(d.ServiceName))
	}
	r.Use(RequestID(), Recover(d.Logger), AccessLog(d.Logger), Cors())

	r.GET("/health", HealthHandler{Runner: d.Runner}.Health)

	sh := ScrapeHandler{Runner: d.Runner, Runs: d.Runs, Logger: d.Logger}
	r.POST("/scrape", sh.Run)
	r.GET("/scrape/status", sh.Status)
	r.POST("/scrape/cancel", sh.Cancel)
	r.GET("/scrape/runs", sh.History)

	jh := JobsHandler{Searcher: d.Searcher, Corpus: d.Corpus}
	r.POST("/search", jh.Search)
	r.GET("/jobs", jh.List)

	r.GET("/events", EventsHandler{Hub: d.Hub}.ServeSSE)

	if d.Config != nil {
		ch := ConfigHandler{Current: d.Config, Path: d.ConfigPath}
		r.GET("/config", ch.Get)
		r.PUT("/config", ch.Put)
	}
	if d.SetSecret != nil {
		r.PUT("/secrets/:account", SecretsHandler{Set: d.SetSecret}.Put)
	}

	return r
}
