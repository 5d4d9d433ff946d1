package routes

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"scheduling-server/middleware"
	"scheduling-server/push"
	"scheduling-server/services"
)

// RegisterStaffRoutes registers device telemetry and push verification.
func RegisterStaffRoutes(router *gin.RouterGroup, h *Handlers) {
	router.POST("/sync-device", h.syncDevice)
	router.POST("/verify-push", middleware.RequireDirectorEquivalent(), h.verifyPush)
}

func (h *Handlers) syncDevice(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	patch, err := services.ParsePatch(body)
	if err != nil {
		h.respondError(c, err, "Internal server error")
		return
	}
	if err := h.Devices.Sync(c.Request.Context(), currentUser(c), patch); err != nil {
		h.respondError(c, err, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type verifyPushRequest struct {
	TargetUserID string `json:"targetUserID"`
}

// verifyPush sends a synchronous ping to the target's latest device and
// reports whether it arrived.
func (h *Handlers) verifyPush(c *gin.Context) {
	var req verifyPushRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TargetUserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing targetUserID"})
		return
	}
	ctx := c.Request.Context()

	member, err := h.Devices.TenantMember(ctx, currentUser(c).Tenant(), req.TargetUserID)
	if err != nil {
		h.respondError(c, err, "Verification failed")
		return
	}
	if !member {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	result, err := h.Push.Verify(ctx, req.TargetUserID)
	if errors.Is(err, push.ErrNotConfigured) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server VAPID incorrectly configured."})
		return
	}
	if err != nil {
		h.respondError(c, err, "Verification failed")
		return
	}
	c.JSON(http.StatusOK, result)
}
