package routes

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"scheduling-server/logger"
	"scheduling-server/metrics"
	"scheduling-server/middleware"
	"scheduling-server/models"
	"scheduling-server/push"
	"scheduling-server/realtime"
	"scheduling-server/services"
)

// Handlers holds the collaborators the HTTP surface calls into.
type Handlers struct {
	Appointments *services.AppointmentService
	Clients      *services.ClientService
	Workers      *services.WorkerService
	Teams        *services.TeamService
	Catalog      *services.CatalogService
	Reports      *services.ReportService
	Devices      *services.DeviceService
	Projection   *services.Projection
	Push         *push.Service

	Router   *realtime.Router
	Stream   realtime.StreamOptions
	Upgrader websocket.Upgrader

	log zerolog.Logger
}

// RegisterRoutes registers all API routes. auth must store the session user
// the way middleware.AuthMiddleware does.
func RegisterRoutes(router *gin.Engine, h *Handlers, auth gin.HandlerFunc) {
	h.log = logger.WithComponent("routes")

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	RegisterSchedulingRoutes(router.Group("/scheduling", auth), h)
	RegisterEventRoutes(router.Group("/scheduling", auth), h)
	RegisterPushRoutes(router.Group("/push", auth), h)
	RegisterStaffRoutes(router.Group("/staff", auth), h)
}

// respondError maps service errors onto status codes. Anything unexpected is
// logged and reported as a generic failure.
func (h *Handlers) respondError(c *gin.Context, err error, failure string) {
	var (
		verr *services.ValidationError
		perr *services.FieldPermissionError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.FieldErrors})
	case errors.As(err, &perr):
		c.JSON(http.StatusForbidden, gin.H{"error": perr.Error(), "fields": perr.Fields})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg(failure)
		c.JSON(http.StatusInternalServerError, gin.H{"error": failure})
	}
}

// readPatch decodes a PUT or DELETE body and its "id" member.
func readPatch(c *gin.Context) (services.Patch, string, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, "", &services.ValidationError{FieldErrors: map[string]string{"body": "could not be read"}}
	}
	patch, err := services.ParsePatch(body)
	if err != nil {
		return nil, "", err
	}
	id, err := patch.ID()
	if err != nil {
		return nil, "", err
	}
	return patch, id, nil
}

// bindJSON decodes a create body, reporting malformed JSON as a validation
// error.
func bindJSON(c *gin.Context, dest any) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return &services.ValidationError{FieldErrors: map[string]string{"body": err.Error()}}
	}
	return nil
}

func currentUser(c *gin.Context) *models.User {
	return middleware.CurrentUser(c)
}

func (h *Handlers) streamOptions() realtime.StreamOptions {
	opts := h.Stream
	if opts.KeepaliveInterval <= 0 {
		opts.KeepaliveInterval = 30 * time.Second
	}
	return opts
}
