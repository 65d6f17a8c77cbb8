package main

import (
	"crypto/subtle"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobfinder-engine/internal/httpapi"
)

// shutdownHandler lets a supervising local process stop the engine. It only
// answers loopback callers that present the token.
func shutdownHandler(token string, stop func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			host = c.Request.RemoteAddr
		}
		if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
			httpapi.WriteError(c, http.StatusForbidden, "forbidden", "shutdown is only accepted from loopback")
			return
		}

		got := c.GetHeader("X-Shutdown-Token")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			httpapi.WriteError(c, http.StatusUnauthorized, "unauthorized", "bad shutdown token")
			return
		}

		c.String(http.StatusOK, "shutting down\n")
		go stop()
	}
}
