package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scheduling-server/push"
)

// RegisterPushRoutes registers device endpoint registration.
func RegisterPushRoutes(router *gin.RouterGroup, h *Handlers) {
	router.POST("/subscribe", h.subscribePush)
	router.POST("/unsubscribe", h.unsubscribePush)
}

type subscribeRequest struct {
	Subscription push.SubscriptionInput `json:"subscription" binding:"required"`
}

func (h *Handlers) subscribePush(c *gin.Context) {
	var req subscribeRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err, "Failed to save subscription")
		return
	}
	if err := h.Push.Subscribe(c.Request.Context(), currentUser(c).UserID, req.Subscription); err != nil {
		h.respondError(c, err, "Failed to save subscription")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// unsubscribePush only removes endpoints the caller owns.
func (h *Handlers) unsubscribePush(c *gin.Context) {
	var req unsubscribeRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err, "Failed to remove subscription")
		return
	}
	removed, err := h.Push.Unsubscribe(c.Request.Context(), currentUser(c).UserID, req.Endpoint)
	if err != nil {
		h.respondError(c, err, "Failed to remove subscription")
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
