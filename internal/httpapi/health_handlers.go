package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	Runner Runner
}

func (h HealthHandler) Health(c *gin.Context) {
	running := false
	if h.Runner != nil {
		running = h.Runner.Status().Running
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "running": running})
}
