package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"scheduling-server/models"
	"scheduling-server/services"
)

// RegisterSchedulingRoutes registers the projection and CRUD endpoints. PUT
// and DELETE carry the record id in the JSON body.
func RegisterSchedulingRoutes(router *gin.RouterGroup, h *Handlers) {
	router.GET("", h.getScheduling)

	appointments := router.Group("/appointments")
	{
		appointments.GET("", h.getAppointments)
		appointments.POST("", createHandler(h, "appointment", h.Appointments.Create))
		appointments.PUT("", updateHandler(h, "appointment", h.Appointments.Update))
		appointments.DELETE("", deleteHandler(h, "appointment", h.Appointments.Delete))
	}

	clients := router.Group("/clients")
	{
		clients.GET("", h.getClients)
		clients.POST("", createHandler(h, "client", h.Clients.Create))
		clients.PUT("", updateHandler(h, "client", h.Clients.Update))
		clients.DELETE("", deleteHandler(h, "client", h.Clients.Delete))
	}

	workers := router.Group("/workers")
	{
		workers.GET("", h.getWorkers)
		workers.POST("", createHandler(h, "worker", h.Workers.Create))
		workers.PUT("", updateHandler(h, "worker", h.Workers.Update))
		workers.DELETE("", deleteHandler(h, "worker", h.Workers.Delete))
	}

	teams := router.Group("/teams")
	{
		teams.GET("", h.getTeams)
		teams.POST("", createHandler(h, "team", h.Teams.CreateTeam))
		teams.PUT("", updateHandler(h, "team", h.Teams.UpdateTeam))
		teams.DELETE("", deleteHandler(h, "team", h.Teams.DeleteTeam))
	}

	groupes := router.Group("/groupes")
	{
		groupes.GET("", h.getGroupes)
		groupes.POST("", createHandler(h, "groupe", h.Teams.CreateGroupe))
		groupes.PUT("", updateHandler(h, "groupe", h.Teams.UpdateGroupe))
		groupes.DELETE("", deleteHandler(h, "groupe", h.Teams.DeleteGroupe))
	}

	catalog := router.Group("/services")
	{
		catalog.GET("", h.getServices)
		catalog.POST("", createHandler(h, "service", h.Catalog.Create))
		catalog.PUT("", updateHandler(h, "service", h.Catalog.Update))
		catalog.DELETE("", deleteHandler(h, "service", h.Catalog.Delete))
	}

	reports := router.Group("/reports")
	{
		reports.GET("", h.getReports)
		reports.POST("", createHandler(h, "report", h.Reports.Create))
		reports.PUT("", updateHandler(h, "report", h.Reports.Update))
		reports.DELETE("", deleteHandler(h, "report", h.Reports.Delete))
	}
}

func createHandler[In, Out any](h *Handlers, noun string, create func(context.Context, *models.User, In) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in In
		if err := bindJSON(c, &in); err != nil {
			h.respondError(c, err, "Failed to create "+noun)
			return
		}
		out, err := create(c.Request.Context(), currentUser(c), in)
		if err != nil {
			h.respondError(c, err, "Failed to create "+noun)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func updateHandler[Out any](h *Handlers, noun string, update func(context.Context, *models.User, string, services.Patch) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		patch, id, err := readPatch(c)
		if err != nil {
			h.respondError(c, err, "Failed to update "+noun)
			return
		}
		out, err := update(c.Request.Context(), currentUser(c), id, patch)
		if err != nil {
			h.respondError(c, err, "Failed to update "+noun)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func deleteHandler(h *Handlers, noun string, remove func(context.Context, *models.User, string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, id, err := readPatch(c)
		if err != nil {
			h.respondError(c, err, "Failed to delete "+noun)
			return
		}
		if err := remove(c.Request.Context(), currentUser(c), id); err != nil {
			h.respondError(c, err, "Failed to delete "+noun)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func (h *Handlers) getScheduling(c *gin.Context) {
	resp, err := h.Projection.Full(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err, "Failed to load scheduling data")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) getAppointments(c *gin.Context) {
	appointments, err := h.Projection.Appointments(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err, "Failed to load appointments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": appointments})
}

func (h *Handlers) getReports(c *gin.Context) {
	reports, err := h.Projection.Reports(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err, "Failed to load reports")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (h *Handlers) getClients(c *gin.Context) {
	clients, err := h.Projection.Clients(c.Request.Context(), currentUser(c).Tenant())
	if err != nil {
		h.respondError(c, err, "Failed to load clients")
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

func (h *Handlers) getWorkers(c *gin.Context) {
	workers, err := h.Projection.Workers(c.Request.Context(), currentUser(c).Tenant())
	if err != nil {
		h.respondError(c, err, "Failed to load workers")
		return
	}
	c.JSON(http.StatusOK, gin.H{"workers": workers})
}

func (h *Handlers) getServices(c *gin.Context) {
	catalog, err := h.Projection.Services(c.Request.Context(), currentUser(c).Tenant())
	if err != nil {
		h.respondError(c, err, "Failed to load services")
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": catalog})
}

func (h *Handlers) getTeams(c *gin.Context) {
	teams, err := h.Projection.Teams(c.Request.Context(), currentUser(c).Tenant())
	if err != nil {
		h.respondError(c, err, "Failed to load teams")
		return
	}
	out := make([]models.TeamResponse, 0, len(teams))
	for _, t := range teams {
		out = append(out, models.TeamResponse{ID: t.TeamID, TeamName: t.TeamName, FirmaID: t.FirmaID})
	}
	c.JSON(http.StatusOK, gin.H{"teams": out})
}

func (h *Handlers) getGroupes(c *gin.Context) {
	groupes, err := h.Projection.Groupes(c.Request.Context(), currentUser(c).Tenant())
	if err != nil {
		h.respondError(c, err, "Failed to load groupes")
		return
	}
	out := make([]models.GroupeResponse, 0, len(groupes))
	for _, g := range groupes {
		out = append(out, models.GroupeResponse{ID: g.GroupeID, GroupeName: g.GroupeName, FirmaID: g.FirmaID})
	}
	c.JSON(http.StatusOK, gin.H{"groupes": out})
}
