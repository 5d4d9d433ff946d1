package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scheduling-server/middleware"
	"scheduling-server/realtime"
)

// RegisterEventRoutes registers the tenant event streams.
func RegisterEventRoutes(router *gin.RouterGroup, h *Handlers) {
	router.GET("/events", h.streamEvents)
	router.GET("/ws", h.streamWebSocket)
	router.GET("/events/stats", middleware.RequireDirectorEquivalent(), h.eventStats)
}

// streamEvents serves the SSE stream of the caller's firma until the client
// disconnects.
func (h *Handlers) streamEvents(c *gin.Context) {
	firmaID := currentUser(c).Tenant()
	stream := realtime.NewSSEStream(h.Router, firmaID, h.streamOptions())
	stream.Serve(c.Request.Context(), c.Writer)
}

func (h *Handlers) streamWebSocket(c *gin.Context) {
	firmaID := currentUser(c).Tenant()
	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader already wrote the HTTP error.
		h.log.Debug().Err(err).Str("firma_id", firmaID).Msg("WebSocket upgrade failed")
		return
	}
	stream := realtime.NewWebSocketStream(h.Router, firmaID, conn, h.streamOptions())
	stream.Serve(c.Request.Context())
}

func (h *Handlers) eventStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Router.Stats())
}
