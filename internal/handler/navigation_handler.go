package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/epathshala/portal-api/internal/models"
	"github.com/epathshala/portal-api/internal/view"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
	"github.com/epathshala/portal-api/pkg/response"
)

type navigationService interface {
	MenuFor(role models.UserRole) (models.NavigationConfig, bool)
	Shell(ctx context.Context, claims *models.JWTClaims, variant models.LayoutVariant) (*models.Shell, error)
}

// NavigationHandler serves role menus and the layout shell.
type NavigationHandler struct {
	service navigationService
}

// NewNavigationHandler constructs a NavigationHandler.
func NewNavigationHandler(svc navigationService) *NavigationHandler {
	return &NavigationHandler{service: svc}
}

// Menu godoc
// @Summary Role menu
// @Description Sidebar configuration for the caller's role, or for the role query parameter
// @Tags Navigation
// @Produce json
// @Param role query string false "ADMIN, STUDENT, TEACHER or PARENT"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /navigation/menu [get]
func (h *NavigationHandler) Menu(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	role := claims.Role
	if raw := strings.TrimSpace(c.Query("role")); raw != "" {
		role = models.UserRole(strings.ToUpper(raw))
	}
	menu, fallback := h.service.MenuFor(role)
	response.JSON(c, http.StatusOK, menu, nil, gin.H{"fallback": fallback})
}

// Shell godoc
// @Summary Layout shell
// @Description User, menu, sidebar state and unread badge for a layout variant
// @Tags Navigation
// @Produce json
// @Param variant query string false "unified, main or teacher"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /navigation/shell [get]
func (h *NavigationHandler) Shell(c *gin.Context) {
	shell, err := h.shell(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, shell, nil)
}

// ShellHTML godoc
// @Summary Rendered layout shell
// @Tags Navigation
// @Produce html
// @Param variant query string false "unified, main or teacher"
// @Param path query string false "Active page path"
// @Success 200 {string} string
// @Router /navigation/shell.html [get]
func (h *NavigationHandler) ShellHTML(c *gin.Context) {
	shell, err := h.shell(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.HTML(c, http.StatusOK, view.ShellPage(shell, c.Query("path")))
}

func (h *NavigationHandler) shell(c *gin.Context) (*models.Shell, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	variant, err := variantParam(c.Query("variant"))
	if err != nil {
		return nil, err
	}
	return h.service.Shell(c.Request.Context(), claims, variant)
}

func variantParam(raw string) (models.LayoutVariant, error) {
	if raw == "" {
		return models.LayoutUnified, nil
	}
	variant, ok := models.ParseLayoutVariant(raw)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, "unknown layout variant")
	}
	return variant, nil
}
