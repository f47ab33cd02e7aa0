package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/epathshala/portal-api/internal/middleware"
	"github.com/epathshala/portal-api/internal/models"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
	"github.com/epathshala/portal-api/pkg/response"
)

type notificationService interface {
	List(ctx context.Context, userID string, role models.UserRole) ([]models.Notification, error)
	CachedUnreadCount(ctx context.Context, userID string) (int64, bool, error)
	Summary(ctx context.Context, userID string, role models.UserRole) (*models.NotificationSummary, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	CreateAnnouncement(ctx context.Context, actor *models.JWTClaims, req models.AnnouncementRequest) (*models.Notification, error)
	Announcements(ctx context.Context) ([]models.Notification, error)
	BroadcastTopic(ctx context.Context, actor *models.JWTClaims, topic string, event models.TopicEvent) (*models.TopicEvent, error)
}

// NotificationHandler serves the notification bell and announcements.
type NotificationHandler struct {
	service notificationService
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(svc notificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// List godoc
// @Summary User notifications
// @Description The caller's own and global notifications, newest first
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/user [get]
func (h *NotificationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.service.List(c.Request.Context(), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, models.NotificationList{Content: items}, nil, middleware.ResponseMeta(c))
}

// UnreadCount godoc
// @Summary Unread notification count
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/user/unread/count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	count, hit, err := h.service.CachedUnreadCount(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, models.UnreadCount{Count: count}, nil, middleware.ResponseMeta(c))
}

// Summary godoc
// @Summary Notifications and unread count
// @Description Both loaded together; either failing fails the request
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/user/summary [get]
func (h *NotificationHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, middleware.ResponseMeta(c))
}

// MarkRead godoc
// @Summary Mark notification read
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notifications/mark-read/{id} [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkAllRead godoc
// @Summary Mark all notifications read
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/mark-all-read [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	affected, err := h.service.MarkAllRead(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": affected}, nil)
}

// Announcements godoc
// @Summary Active announcements
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/announcements [get]
func (h *NotificationHandler) Announcements(c *gin.Context) {
	items, err := h.service.Announcements(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, models.NotificationList{Content: items}, nil)
}

// CreateAnnouncement godoc
// @Summary Post announcement
// @Description Global announcement pushed to /topic/announcements. Admins and teachers only.
// @Tags Notifications
// @Accept json
// @Produce json
// @Param payload body models.AnnouncementRequest true "Announcement"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /notifications/announcements [post]
func (h *NotificationHandler) CreateAnnouncement(c *gin.Context) {
	var req models.AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid announcement payload"))
		return
	}
	n, err := h.service.CreateAnnouncement(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, n)
}

// Broadcast returns a handler publishing events to /topic/{topic}.
//
// @Summary Broadcast topic event
// @Tags Notifications
// @Accept json
// @Produce json
// @Param payload body models.TopicEvent true "Event"
// @Success 202 {object} response.Envelope
// @Router /notifications/assignment [post]
// @Router /notifications/leaveApproval [post]
func (h *NotificationHandler) Broadcast(topic string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var event models.TopicEvent
		if err := c.ShouldBindJSON(&event); err != nil {
			response.Error(c, appErrors.Validation(err, "invalid event payload"))
			return
		}
		sent, err := h.service.BroadcastTopic(c.Request.Context(), claimsFromContext(c), topic, event)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusAccepted, sent, nil)
	}
}
