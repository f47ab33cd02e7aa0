package handler

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epathshala/portal-api/internal/models"
	"github.com/epathshala/portal-api/internal/service"
)

type fakeCalendarService struct {
	viewer  *models.JWTClaims
	listReq service.CalendarListRequest
	created service.CalendarEventRequest
	deleted string
}

func (f *fakeCalendarService) List(_ context.Context, viewer *models.JWTClaims, req service.CalendarListRequest) ([]models.CalendarEvent, *models.Pagination, error) {
	f.viewer, f.listReq = viewer, req
	return []models.CalendarEvent{{ID: "e1", Title: "Sports Day"}}, &models.Pagination{Page: 1, PageSize: 50, TotalCount: 1}, nil
}

func (f *fakeCalendarService) Get(_ context.Context, viewer *models.JWTClaims, id string) (*models.CalendarEvent, error) {
	f.viewer = viewer
	return &models.CalendarEvent{ID: id}, nil
}

func (f *fakeCalendarService) Create(_ context.Context, actor *models.JWTClaims, req service.CalendarEventRequest) (*models.CalendarEvent, error) {
	f.created = req
	return &models.CalendarEvent{ID: "e2", Title: req.Title, CreatedBy: actor.UserID}, nil
}

func (f *fakeCalendarService) Update(_ context.Context, id string, req service.CalendarEventRequest) (*models.CalendarEvent, error) {
	return &models.CalendarEvent{ID: id, Title: req.Title}, nil
}

func (f *fakeCalendarService) Delete(_ context.Context, id string) error {
	f.deleted = id
	return nil
}

func TestCalendarHandlerListAnonymous(t *testing.T) {
	svc := &fakeCalendarService{}
	h := NewCalendarHandler(svc)

	c, rec := testContext(http.MethodGet, "/events?from=2026-11-01&endDate=2026-11-30", nil, nil)
	h.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.viewer)
	require.NotNil(t, svc.listReq.From)
	require.NotNil(t, svc.listReq.To)
	assert.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), *svc.listReq.From)
	assert.Equal(t, 30, svc.listReq.To.Day())
	assert.Equal(t, 23, svc.listReq.To.Hour())

	var events []models.CalendarEvent
	decodeEnvelope(t, rec, &events)
	assert.Len(t, events, 1)
}

func TestCalendarHandlerListRejectsBadDate(t *testing.T) {
	h := NewCalendarHandler(&fakeCalendarService{})
	c, rec := testContext(http.MethodGet, "/events?from=01-11-2026", nil, studentClaims)
	h.List(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalendarHandlerCreateAndDelete(t *testing.T) {
	svc := &fakeCalendarService{}
	h := NewCalendarHandler(svc)

	c, rec := testContext(http.MethodPost, "/admin/events", map[string]interface{}{
		"title": "Exams", "start_date": "2026-12-01T00:00:00Z", "audience": "STUDENT",
	}, adminClaims)
	h.Create(c)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Exams", svc.created.Title)
	assert.Equal(t, "STUDENT", svc.created.Audience)

	c, rec = testContext(http.MethodPost, "/admin/events", map[string]interface{}{"title": 7}, adminClaims)
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = testContext(http.MethodDelete, "/admin/events/e1", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	h.Delete(c)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "e1", svc.deleted)
}

type calendarEventStore map[string]models.CalendarEvent

func (s calendarEventStore) List(context.Context, models.CalendarFilter) ([]models.CalendarEvent, int, error) {
	return nil, 0, nil
}

func (s calendarEventStore) GetByID(_ context.Context, id string) (*models.CalendarEvent, error) {
	e, ok := s[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (s calendarEventStore) Create(context.Context, *models.CalendarEvent) error {
	return nil
}

func (s calendarEventStore) Update(context.Context, *models.CalendarEvent) error {
	return nil
}

func (s calendarEventStore) Delete(context.Context, string) error {
	return nil
}

func TestCalendarHandlerGetScopesAudience(t *testing.T) {
	store := calendarEventStore{
		"staff":  {ID: "staff", Title: "Staff Meeting", Audience: string(models.RoleTeacher)},
		"sports": {ID: "sports", Title: "Sports Day", Audience: models.TargetRoleAll},
	}
	h := NewCalendarHandler(service.NewCalendarService(store, nil, nil, nil))
	teacher := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	get := func(id string, viewer *models.JWTClaims) int {
		c, rec := testContext(http.MethodGet, "/events/"+id, nil, viewer)
		c.Params = gin.Params{{Key: "id", Value: id}}
		h.Get(c)
		return rec.Code
	}

	assert.Equal(t, http.StatusNotFound, get("staff", nil))
	assert.Equal(t, http.StatusNotFound, get("staff", studentClaims))
	assert.Equal(t, http.StatusOK, get("staff", teacher))
	assert.Equal(t, http.StatusOK, get("staff", adminClaims))
	assert.Equal(t, http.StatusOK, get("sports", nil))
	assert.Equal(t, http.StatusNotFound, get("missing", adminClaims))
}

func TestCalendarHandlerGetPassesViewer(t *testing.T) {
	svc := &fakeCalendarService{}
	h := NewCalendarHandler(svc)

	c, rec := testContext(http.MethodGet, "/events/e1", nil, studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	h.Get(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, studentClaims, svc.viewer)
}
