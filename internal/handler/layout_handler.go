package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/epathshala/portal-api/internal/models"
	"github.com/epathshala/portal-api/internal/service"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
	"github.com/epathshala/portal-api/pkg/response"
)

type layoutPreferenceService interface {
	Get(ctx context.Context, userID string, variant models.LayoutVariant) (*models.LayoutPreference, error)
	Set(ctx context.Context, userID string, variant models.LayoutVariant, collapsed bool) (*models.LayoutPreference, error)
	GetAll(ctx context.Context, userID string) (map[string]bool, error)
}

type layoutPreferencePayload struct {
	Collapsed *bool `json:"collapsed"`
}

// SidebarStatus is the sidebar state after a toggle.
type SidebarStatus struct {
	Layout      models.LayoutVariant `json:"layout"`
	State       service.SidebarState `json:"state"`
	Collapsed   bool                 `json:"collapsed"`
	DrawerWidth int                  `json:"drawer_width"`
}

// LayoutHandler persists sidebar collapse preferences per layout.
type LayoutHandler struct {
	service layoutPreferenceService
}

// NewLayoutHandler constructs a LayoutHandler.
func NewLayoutHandler(svc layoutPreferenceService) *LayoutHandler {
	return &LayoutHandler{service: svc}
}

// List godoc
// @Summary All layout preferences
// @Description Collapsed flag keyed by storage key for every layout
// @Tags Layout
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /layout/preferences [get]
func (h *LayoutHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	prefs, err := h.service.GetAll(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefs, nil)
}

// Get godoc
// @Summary Layout preference
// @Tags Layout
// @Produce json
// @Param variant path string true "unified, main, teacher or a storage key"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /layout/preferences/{variant} [get]
func (h *LayoutHandler) Get(c *gin.Context) {
	claims, variant, ok := h.target(c)
	if !ok {
		return
	}
	pref, err := h.service.Get(c.Request.Context(), claims.UserID, variant)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pref, nil)
}

// Put godoc
// @Summary Save layout preference
// @Tags Layout
// @Accept json
// @Produce json
// @Param variant path string true "unified, main, teacher or a storage key"
// @Param payload body layoutPreferencePayload true "Collapsed flag"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /layout/preferences/{variant} [put]
func (h *LayoutHandler) Put(c *gin.Context) {
	claims, variant, ok := h.target(c)
	if !ok {
		return
	}
	var payload layoutPreferencePayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Collapsed == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "collapsed is required"))
		return
	}
	pref, err := h.service.Set(c.Request.Context(), claims.UserID, variant, *payload.Collapsed)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pref, nil)
}

// Toggle godoc
// @Summary Toggle sidebar
// @Description Flip the stored collapse flag of a layout and return the new sidebar state
// @Tags Layout
// @Produce json
// @Param variant path string true "unified, main, teacher or a storage key"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /layout/preferences/{variant}/toggle [post]
func (h *LayoutHandler) Toggle(c *gin.Context) {
	claims, variant, ok := h.target(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	current, err := h.service.Get(ctx, claims.UserID, variant)
	if err != nil {
		response.Error(c, err)
		return
	}

	sidebar := service.NewSidebar(service.SidebarConfig{
		UserID:    claims.UserID,
		Variant:   variant,
		Collapsed: current.Collapsed,
		Store:     h.service,
	})
	state, err := sidebar.Toggle(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, SidebarStatus{
		Layout:      variant,
		State:       state,
		Collapsed:   sidebar.Collapsed(),
		DrawerWidth: sidebar.DrawerWidth(),
	}, nil)
}

func (h *LayoutHandler) target(c *gin.Context) (*models.JWTClaims, models.LayoutVariant, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, "", false
	}
	variant, ok := models.ParseLayoutVariant(c.Param("variant"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown layout variant"))
		return nil, "", false
	}
	return claims, variant, true
}
