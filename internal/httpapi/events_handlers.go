package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobfinder-engine/internal/events"
)

type EventsHandler struct {
	Hub *events.Hub
}

func (h EventsHandler) ServeSSE(c *gin.Context) {
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.Hub.Subscribe()
	defer h.Hub.Unsubscribe(ch)

	c.Status(http.StatusOK)
	fmt.Fprintf(w, "event: message\ndata: %s\n\n", events.MakeEvent(RequestIDFrom(c), "ping", 1, nil))
	w.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			w.Flush()
		}
	}
}
