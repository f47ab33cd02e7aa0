package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/epathshala/portal-api/internal/models"
	"github.com/epathshala/portal-api/pkg/cache"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
	"github.com/epathshala/portal-api/pkg/jobs"
)

// Realtime destinations the notification service pushes to.
const (
	DestinationAnnouncements = "/topic/announcements"
	DestinationUserQueue     = "/queue/notifications"
	announcementActionURL    = "/announcements"
	announcementActionText   = "View Announcement"
)

// Push job types handled by RegisterPushHandlers.
const (
	JobTopicPush = "realtime.topic"
	JobUserPush  = "realtime.user"
)

// broadcastTopics are the topics clients may publish events to over REST.
var broadcastTopics = map[string]struct{}{
	"assignment":    {},
	"leaveApproval": {},
}

type notificationRepository interface {
	ListForUser(ctx context.Context, userID string, role models.UserRole, now time.Time, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string, now time.Time) (int64, error)
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Create(ctx context.Context, n *models.Notification) error
	ListGlobal(ctx context.Context, now time.Time) ([]models.Notification, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// Publisher delivers payloads to realtime subscribers.
type Publisher interface {
	Publish(destination string, payload interface{}) error
	PublishToUser(userID, destination string, payload interface{}) error
}

// PushPayload is the body of a realtime push job.
type PushPayload struct {
	UserID      string
	Destination string
	Body        interface{}
}

// RegisterPushHandlers routes push jobs to the publisher.
func RegisterPushHandlers(mux *jobs.Mux, pub Publisher) {
	mux.Handle(JobTopicPush, func(_ context.Context, job jobs.Job) error {
		p, ok := job.Payload.(PushPayload)
		if !ok {
			return errors.New("topic push: unexpected payload")
		}
		return pub.Publish(p.Destination, p.Body)
	})
	mux.Handle(JobUserPush, func(_ context.Context, job jobs.Job) error {
		p, ok := job.Payload.(PushPayload)
		if !ok {
			return errors.New("user push: unexpected payload")
		}
		return pub.PublishToUser(p.UserID, p.Destination, p.Body)
	})
}

// NotificationConfig tunes the notification service.
type NotificationConfig struct {
	AnnouncementTTL time.Duration
	UnreadCacheTTL  time.Duration
	ListLimit       int
}

// NotificationService lists, counts and acknowledges notifications and fans
// announcements out to realtime subscribers.
type NotificationService struct {
	repo      notificationRepository
	cache     *CacheService
	dispatch  jobEnqueuer
	validator *validator.Validate
	logger    *zap.Logger
	cfg       NotificationConfig
	now       func() time.Time
}

// NewNotificationService builds the service. cache and dispatch may be nil.
func NewNotificationService(repo notificationRepository, cacheSvc *CacheService, dispatch jobEnqueuer, validate *validator.Validate, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AnnouncementTTL <= 0 {
		cfg.AnnouncementTTL = 30 * 24 * time.Hour
	}
	if cfg.UnreadCacheTTL <= 0 {
		cfg.UnreadCacheTTL = 30 * time.Second
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 50
	}
	return &NotificationService{
		repo:      repo,
		cache:     cacheSvc,
		dispatch:  dispatch,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func unreadCacheKey(userID string) string {
	return cache.Key("notifications", "unread", userID)
}

// List returns the user's own and global notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, role models.UserRole) ([]models.Notification, error) {
	items, err := s.repo.ListForUser(ctx, userID, role, s.now(), s.cfg.ListLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, nil
}

// UnreadCount counts the user's own unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	count, _, err := s.CachedUnreadCount(ctx, userID)
	return count, err
}

// CachedUnreadCount is UnreadCount that also reports whether the value came
// from the cache.
func (s *NotificationService) CachedUnreadCount(ctx context.Context, userID string) (int64, bool, error) {
	var cached int64
	if s.cache.Get(ctx, unreadCacheKey(userID), &cached) {
		return cached, true, nil
	}
	count, err := s.repo.CountUnread(ctx, userID, s.now())
	if err != nil {
		return 0, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	s.cache.Set(ctx, unreadCacheKey(userID), count, s.cfg.UnreadCacheTTL)
	return count, false, nil
}

// Summary loads the list and the count concurrently. Either failing fails
// both; no partial result is returned.
func (s *NotificationService) Summary(ctx context.Context, userID string, role models.UserRole) (*models.NotificationSummary, error) {
	var (
		items []models.Notification
		count int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.List(gctx, userID, role)
		return err
	})
	g.Go(func() error {
		var err error
		count, err = s.UnreadCount(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &models.NotificationSummary{Content: items, Count: count}, nil
}

// MarkRead flags one notification read. Notifications addressed to someone
// else are left untouched.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if !n.VisibleTo(userID) {
		s.logger.Debug("mark read ignored for foreign notification", zap.String("notification_id", id), zap.String("user_id", userID))
		return nil
	}
	if n.IsRead {
		return nil
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	s.cache.Delete(ctx, unreadCacheKey(userID))
	return nil
}

// MarkAllRead flags every unread notification of the user and returns how
// many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	affected, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	s.cache.Delete(ctx, unreadCacheKey(userID))
	return affected, nil
}

// CreateAnnouncement publishes a global announcement. Only admins and
// teachers may announce.
func (s *NotificationService) CreateAnnouncement(ctx context.Context, actor *models.JWTClaims, req models.AnnouncementRequest) (*models.Notification, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and teachers can post announcements")
	}
	req.TargetRole = strings.ToUpper(strings.TrimSpace(req.TargetRole))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid announcement payload")
	}
	if req.TargetRole == "" {
		req.TargetRole = models.TargetRoleAll
	}

	now := s.now()
	senderID := actor.UserID
	senderName := actor.FullName
	actionURL := announcementActionURL
	actionText := announcementActionText
	n := &models.Notification{
		Title:      req.Title,
		Content:    req.Content,
		Type:       models.NotificationTypeAnnouncement,
		Priority:   models.NotificationPriorityHigh,
		SenderID:   &senderID,
		SenderName: &senderName,
		IsGlobal:   true,
		TargetRole: req.TargetRole,
		ActionURL:  &actionURL,
		ActionText: &actionText,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.AnnouncementTTL),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}

	s.push(JobTopicPush, PushPayload{Destination: DestinationAnnouncements, Body: n})
	return n, nil
}

// Announcements returns unexpired global announcements.
func (s *NotificationService) Announcements(ctx context.Context) ([]models.Notification, error) {
	items, err := s.repo.ListGlobal(ctx, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, nil
}

// Notify stores a notification for one recipient and pushes it to their
// personal queue.
func (s *NotificationService) Notify(ctx context.Context, in models.NotificationInput) (*models.Notification, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, appErrors.Validation(err, "invalid notification payload")
	}
	if in.Priority == "" {
		in.Priority = models.NotificationPriorityMedium
	}

	now := s.now()
	recipient := in.RecipientID
	n := &models.Notification{
		Title:       in.Title,
		Content:     in.Content,
		Type:        in.Type,
		Priority:    in.Priority,
		SenderID:    in.SenderID,
		RecipientID: &recipient,
		TargetRole:  models.TargetRoleAll,
		ActionURL:   in.ActionURL,
		ActionText:  in.ActionText,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.AnnouncementTTL),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	s.cache.Delete(ctx, unreadCacheKey(recipient))

	s.push(JobUserPush, PushPayload{UserID: recipient, Destination: DestinationUserQueue, Body: n})
	return n, nil
}

// BroadcastTopic publishes an event to /topic/{topic}. Only the assignment
// and leaveApproval topics are open to REST callers.
func (s *NotificationService) BroadcastTopic(ctx context.Context, actor *models.JWTClaims, topic string, event models.TopicEvent) (*models.TopicEvent, error) {
	if _, ok := broadcastTopics[topic]; !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown topic")
	}
	if event.Type == "" {
		event.Type = topic
	}
	if actor != nil {
		event.SenderID = actor.UserID
	}
	event.Timestamp = s.now()
	s.push(JobTopicPush, PushPayload{Destination: "/topic/" + topic, Body: event})
	return &event, nil
}

func (s *NotificationService) push(jobType string, payload PushPayload) {
	if s.dispatch == nil {
		return
	}
	if err := s.dispatch.Enqueue(jobs.Job{Type: jobType, Payload: payload}); err != nil {
		s.logger.Warn("failed to enqueue realtime push", zap.String("type", jobType), zap.String("destination", payload.Destination), zap.Error(err))
	}
}
