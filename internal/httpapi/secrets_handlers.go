package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type SecretsHandler struct {
	Set func(account, value string) error
}

type setSecretReq struct {
	Value string `json:"value"`
}

// Put stores an API key in the OS keychain under the given account.
func (h SecretsHandler) Put(c *gin.Context) {
	var req setSecretReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Value) == "" {
		WriteError(c, http.StatusBadRequest, "invalid_request", `body must be {"value": "..."}`)
		return
	}
	if err := h.Set(c.Param("account"), req.Value); err != nil {
		WriteError(c, http.StatusBadRequest, "keyring_error", "failed to store secret: "+err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}
