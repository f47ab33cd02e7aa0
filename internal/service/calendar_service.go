package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/epathshala/portal-api/internal/models"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
)

type calendarRepository interface {
	List(ctx context.Context, filter models.CalendarFilter) ([]models.CalendarEvent, int, error)
	GetByID(ctx context.Context, id string) (*models.CalendarEvent, error)
	Create(ctx context.Context, event *models.CalendarEvent) error
	Update(ctx context.Context, event *models.CalendarEvent) error
	Delete(ctx context.Context, id string) error
}

type eventAnnouncer interface {
	CreateAnnouncement(ctx context.Context, actor *models.JWTClaims, req models.AnnouncementRequest) (*models.Notification, error)
}

// CalendarListRequest describes filters for listing events.
type CalendarListRequest struct {
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// CalendarEventRequest is the create and update payload.
type CalendarEventRequest struct {
	Title       string           `json:"title" validate:"required,max=180"`
	Description string           `json:"description" validate:"max=2000"`
	EventType   models.EventType `json:"event_type" validate:"omitempty,oneof=HOLIDAY EXAM MEETING EVENT"`
	StartDate   time.Time        `json:"start_date" validate:"required"`
	EndDate     *time.Time       `json:"end_date"`
	Audience    string           `json:"audience" validate:"omitempty,oneof=ALL ADMIN STUDENT TEACHER PARENT"`
	Location    *string          `json:"location"`
}

// CalendarService manages the academic calendar.
type CalendarService struct {
	repo      calendarRepository
	announcer eventAnnouncer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService constructs the service. announcer may be nil.
func NewCalendarService(repo calendarRepository, announcer eventAnnouncer, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{repo: repo, announcer: announcer, validator: validate, logger: logger}
}

// List returns the events the viewer may see. Anonymous visitors only get
// school-wide events; administrators see everything.
func (s *CalendarService) List(ctx context.Context, viewer *models.JWTClaims, req CalendarListRequest) ([]models.CalendarEvent, *models.Pagination, error) {
	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	filter := models.CalendarFilter{From: req.From, To: req.To, Page: req.Page, PageSize: req.PageSize}
	switch {
	case viewer == nil:
		filter.Audiences = []string{models.TargetRoleAll}
	case viewer.Role != models.RoleAdmin:
		filter.Audiences = []string{models.TargetRoleAll, string(viewer.Role)}
	}

	events, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	if events == nil {
		events = []models.CalendarEvent{}
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	return events, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single event the viewer may see. Events outside the
// viewer's audience read as not found.
func (s *CalendarService) Get(ctx context.Context, viewer *models.JWTClaims, id string) (*models.CalendarEvent, error) {
	event, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibleTo(event, viewer) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}
	return event, nil
}

func (s *CalendarService) load(ctx context.Context, id string) (*models.CalendarEvent, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}

func visibleTo(event *models.CalendarEvent, viewer *models.JWTClaims) bool {
	if event.Audience == "" || event.Audience == models.TargetRoleAll {
		return true
	}
	if viewer == nil {
		return false
	}
	return viewer.Role == models.RoleAdmin || event.Audience == string(viewer.Role)
}

// Create stores an event and announces it to its audience.
func (s *CalendarService) Create(ctx context.Context, actor *models.JWTClaims, req CalendarEventRequest) (*models.CalendarEvent, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.normalize(&req); err != nil {
		return nil, err
	}
	event := &models.CalendarEvent{CreatedBy: actor.UserID}
	applyEventRequest(event, req)
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}

	s.announce(ctx, actor, event)
	return event, nil
}

// Update replaces an event's details.
func (s *CalendarService) Update(ctx context.Context, id string, req CalendarEventRequest) (*models.CalendarEvent, error) {
	if err := s.normalize(&req); err != nil {
		return nil, err
	}
	event, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	applyEventRequest(event, req)
	if err := s.repo.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	return event, nil
}

// Delete removes an event.
func (s *CalendarService) Delete(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	return nil
}

func (s *CalendarService) normalize(req *CalendarEventRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	req.Audience = strings.ToUpper(strings.TrimSpace(req.Audience))
	req.EventType = models.EventType(strings.ToUpper(strings.TrimSpace(string(req.EventType))))
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid event payload")
	}
	if req.Audience == "" {
		req.Audience = models.TargetRoleAll
	}
	if req.EventType == "" {
		req.EventType = models.EventTypeGeneral
	}
	if req.EndDate == nil {
		end := req.StartDate
		req.EndDate = &end
	}
	if req.EndDate.Before(req.StartDate) {
		return appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}
	return nil
}

func applyEventRequest(event *models.CalendarEvent, req CalendarEventRequest) {
	event.Title = req.Title
	event.Description = req.Description
	event.EventType = req.EventType
	event.StartDate = req.StartDate
	event.EndDate = *req.EndDate
	event.Audience = req.Audience
	event.Location = req.Location
}

func (s *CalendarService) announce(ctx context.Context, actor *models.JWTClaims, event *models.CalendarEvent) {
	if s.announcer == nil {
		return
	}
	content := event.Description
	if content == "" {
		content = fmt.Sprintf("%s on %s", event.Title, event.StartDate.Format("02 Jan 2006"))
	}
	_, err := s.announcer.CreateAnnouncement(ctx, actor, models.AnnouncementRequest{
		Title:      "New Academic Event: " + event.Title,
		Content:    content,
		TargetRole: event.Audience,
	})
	if err != nil {
		s.logger.Warn("failed to announce academic event", zap.String("event_id", event.ID), zap.Error(err))
	}
}
