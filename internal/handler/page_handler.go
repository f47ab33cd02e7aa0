package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/epathshala/portal-api/internal/middleware"
	"github.com/epathshala/portal-api/internal/models"
	"github.com/epathshala/portal-api/internal/view"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
	"github.com/epathshala/portal-api/pkg/response"
)

const portalTitle = "ePathshala"

type shellBuilder interface {
	Shell(ctx context.Context, claims *models.JWTClaims, variant models.LayoutVariant) (*models.Shell, error)
}

// PageHandler renders browser pages that passed the route guard.
type PageHandler struct {
	shells shellBuilder
}

// NewPageHandler constructs a PageHandler.
func NewPageHandler(shells shellBuilder) *PageHandler {
	return &PageHandler{shells: shells}
}

// Serve renders the page chosen by the guard. Dashboard pages get the app
// bar and sidebar; public pages get a bare document. Requests the guard did
// not handle are answered with a JSON 404.
func (h *PageHandler) Serve(c *gin.Context) {
	decision, ok := middleware.GuardDecisionFrom(c)
	if !ok || decision.Route == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "route not found"))
		return
	}

	claims := claimsFromContext(c)
	variant, framed := shellVariant(decision.Route.Layout)
	if !framed || claims == nil {
		response.HTML(c, http.StatusOK, view.PlainPage(portalTitle, decision.Route.Page))
		return
	}

	shell, err := h.shells.Shell(c.Request.Context(), claims, variant)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.HTML(c, http.StatusOK, view.ShellPage(shell, decision.Path))
}

func shellVariant(layout models.RouteLayout) (models.LayoutVariant, bool) {
	switch layout {
	case models.LayoutDashboard:
		return models.LayoutUnified, true
	case models.LayoutSidebar:
		return models.LayoutMain, true
	default:
		return "", false
	}
}
