package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"jobfinder-engine/internal/config"
)

type ConfigHandler struct {
	Current func() config.Config
	Path    string
}

// Get renders the running config as YAML with the database DSN masked.
func (h ConfigHandler) Get(c *gin.Context) {
	cfg := h.Current()
	if cfg.Storage.PostgresDSN != "" {
		cfg.Storage.PostgresDSN = "********"
	}
	b, err := yaml.Marshal(&cfg)
	if err != nil {
		WriteError(c, http.StatusInternalServerError, "encode_failed", err.Error())
		return
	}
	c.Data(http.StatusOK, "application/yaml; charset=utf-8", b)
}

// Put overlays a YAML document on the running config, validates it and
// writes it to disk. Changes apply on the next start.
func (h ConfigHandler) Put(c *gin.Context) {
	if h.Path == "" {
		WriteError(c, http.StatusNotFound, "config_readonly", "no config file is attached to this server")
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		WriteError(c, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	cfg := h.Current()
	if err := yaml.Unmarshal(body, &cfg); err != nil {
		WriteError(c, http.StatusBadRequest, "invalid_yaml", err.Error())
		return
	}
	cfg, v := config.NormalizeAndValidate(cfg)
	if !v.OK() {
		WriteError(c, http.StatusUnprocessableEntity, "invalid_config", v.Error())
		return
	}
	if err := config.SaveAtomic(h.Path, cfg); err != nil {
		WriteError(c, http.StatusInternalServerError, "save_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true, "warnings": v.Warnings, "restart_required": true})
}
