package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/epathshala/portal-api/internal/models"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
	"github.com/epathshala/portal-api/pkg/response"
)

type routeService interface {
	Routes() []models.Route
	Resolve(path string, claims *models.JWTClaims) models.GuardDecision
}

// RouteHandler exposes the page route table and guard decisions.
type RouteHandler struct {
	service routeService
}

// NewRouteHandler constructs a RouteHandler.
func NewRouteHandler(svc routeService) *RouteHandler {
	return &RouteHandler{service: svc}
}

// List godoc
// @Summary Page route table
// @Tags Routes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /routes [get]
func (h *RouteHandler) List(c *gin.Context) {
	routes := h.service.Routes()
	response.JSON(c, http.StatusOK, routes, nil, gin.H{"total": len(routes)})
}

// Resolve godoc
// @Summary Resolve a page path
// @Description Guard decision for the path and the caller's session, if any
// @Tags Routes
// @Produce json
// @Param path query string true "Page path"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /routes/resolve [get]
func (h *RouteHandler) Resolve(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "path is required"))
		return
	}
	response.JSON(c, http.StatusOK, h.service.Resolve(path, claimsFromContext(c)), nil)
}
