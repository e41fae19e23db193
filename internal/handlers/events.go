package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type trackEventRequest struct {
	Event      string         `json:"event" binding:"required,max=128"`
	Properties map[string]any `json:"properties"`
}

// TrackEvent answers 202 whatever the consent state so clients cannot probe
// it; nothing is captured unless consent was accepted.
func (h HandlerSet) TrackEvent(c *gin.Context) {
	var req trackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	g := h.gate(c)
	defer g.Close()
	g.Track(req.Event, req.Properties)

	c.Status(http.StatusAccepted)
}
