package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/epathshala/portal-api/internal/models"
	"github.com/epathshala/portal-api/internal/service"
	"github.com/epathshala/portal-api/pkg/export"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
	"github.com/epathshala/portal-api/pkg/response"
)

type sessionService interface {
	GetSession(ctx context.Context, actor *models.JWTClaims, sessionID string) (*models.SessionInfo, error)
	ListActiveSessions(ctx context.Context) ([]models.SessionInfo, error)
}

type sessionExporter interface {
	ExportSessions(ctx context.Context, format export.Format) (*service.ExportFile, error)
}

// SessionHandler exposes session administration.
type SessionHandler struct {
	sessions sessionService
	exporter sessionExporter
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(sessions sessionService, exporter sessionExporter) *SessionHandler {
	return &SessionHandler{sessions: sessions, exporter: exporter}
}

// List godoc
// @Summary List active sessions
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.sessions.ListActiveSessions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil, gin.H{"total": len(sessions)})
}

// Get godoc
// @Summary Get session
// @Description Owners see their own sessions, admins see any
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/session/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	info, err := h.sessions.GetSession(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// Export godoc
// @Summary Export active sessions
// @Tags Sessions
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /auth/sessions/export [get]
func (h *SessionHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Validation(err, "format must be csv or pdf"))
		return
	}
	file, err := h.exporter.ExportSessions(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.Format.ContentType(), file.Data)
}
