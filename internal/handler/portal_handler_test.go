package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epathshala/portal-api/internal/middleware"
	"github.com/epathshala/portal-api/internal/models"
	"github.com/epathshala/portal-api/internal/service"
	"github.com/epathshala/portal-api/pkg/export"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
)

type fakeSessionService struct {
	sessions []models.SessionInfo
}

func (f *fakeSessionService) GetSession(_ context.Context, actor *models.JWTClaims, id string) (*models.SessionInfo, error) {
	for _, s := range f.sessions {
		if s.SessionID != id {
			continue
		}
		if actor.Role != models.RoleAdmin && s.UserID != actor.UserID {
			return nil, appErrors.ErrForbidden
		}
		session := s
		return &session, nil
	}
	return nil, appErrors.ErrNotFound
}

func (f *fakeSessionService) ListActiveSessions(context.Context) ([]models.SessionInfo, error) {
	return f.sessions, nil
}

type fakeExporter struct {
	format export.Format
}

func (f *fakeExporter) ExportSessions(_ context.Context, format export.Format) (*service.ExportFile, error) {
	f.format = format
	return &service.ExportFile{Filename: "active_sessions." + string(format), Format: format, Data: []byte("Session ID\n")}, nil
}

func TestSessionHandler(t *testing.T) {
	sessions := &fakeSessionService{sessions: []models.SessionInfo{
		{SessionID: "sess-1", UserID: "s1"},
		{SessionID: "sess-2", UserID: "t1"},
	}}
	exporter := &fakeExporter{}
	h := NewSessionHandler(sessions, exporter)

	c, rec := testContext(http.MethodGet, "/auth/sessions", nil, adminClaims)
	h.List(c)
	var list []models.SessionInfo
	env := decodeEnvelope(t, rec, &list)
	assert.Len(t, list, 2)
	assert.Equal(t, float64(2), env.Meta["total"])

	c, rec = testContext(http.MethodGet, "/auth/session/sess-1", nil, studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
	h.Get(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = testContext(http.MethodGet, "/auth/session/sess-2", nil, studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "sess-2"}}
	h.Get(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = testContext(http.MethodGet, "/auth/sessions/export?format=PDF", nil, adminClaims)
	h.Export(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.FormatPDF, exporter.format)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "active_sessions.pdf")

	c, rec = testContext(http.MethodGet, "/auth/sessions/export?format=xlsx", nil, adminClaims)
	h.Export(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeNavigation struct {
	variant models.LayoutVariant
}

func (f *fakeNavigation) MenuFor(role models.UserRole) (models.NavigationConfig, bool) {
	if !role.Valid() {
		return models.NavigationConfig{Role: models.RoleStudent, Title: "Student Portal"}, true
	}
	return models.NavigationConfig{Role: role, Title: string(role) + " menu"}, false
}

func (f *fakeNavigation) Shell(_ context.Context, claims *models.JWTClaims, variant models.LayoutVariant) (*models.Shell, error) {
	f.variant = variant
	return &models.Shell{
		User:        claims.Info(),
		Menu:        models.NavigationConfig{Title: "Student Portal", Color: "#1976d2"},
		Layout:      variant,
		DrawerWidth: models.DrawerWidthExpanded,
		UnreadCount: 2,
	}, nil
}

func TestNavigationHandler(t *testing.T) {
	nav := &fakeNavigation{}
	h := NewNavigationHandler(nav)

	c, rec := testContext(http.MethodGet, "/navigation/menu", nil, studentClaims)
	h.Menu(c)
	var menu models.NavigationConfig
	env := decodeEnvelope(t, rec, &menu)
	assert.Equal(t, models.RoleStudent, menu.Role)
	assert.Equal(t, false, env.Meta["fallback"])

	c, rec = testContext(http.MethodGet, "/navigation/menu?role=janitor", nil, studentClaims)
	h.Menu(c)
	env = decodeEnvelope(t, rec, &menu)
	assert.Equal(t, true, env.Meta["fallback"])

	c, rec = testContext(http.MethodGet, "/navigation/shell?variant=teacherSidebarCollapsed", nil, studentClaims)
	h.Shell(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.LayoutTeacher, nav.variant)

	c, rec = testContext(http.MethodGet, "/navigation/shell?variant=sideways", nil, studentClaims)
	h.Shell(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = testContext(http.MethodGet, "/navigation/shell.html?path=/student", nil, studentClaims)
	h.ShellHTML(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `<span class="badge">2</span>`)
}

type memoryLayoutPrefs struct {
	values map[string]bool
}

func (m *memoryLayoutPrefs) Get(_ context.Context, userID string, variant models.LayoutVariant) (*models.LayoutPreference, error) {
	return &models.LayoutPreference{UserID: userID, LayoutKey: variant.StorageKey(), Collapsed: m.values[variant.StorageKey()]}, nil
}

func (m *memoryLayoutPrefs) Set(_ context.Context, userID string, variant models.LayoutVariant, collapsed bool) (*models.LayoutPreference, error) {
	m.values[variant.StorageKey()] = collapsed
	return &models.LayoutPreference{UserID: userID, LayoutKey: variant.StorageKey(), Collapsed: collapsed}, nil
}

func (m *memoryLayoutPrefs) GetAll(context.Context, string) (map[string]bool, error) {
	return m.values, nil
}

func TestLayoutHandlerPutAndToggle(t *testing.T) {
	prefs := &memoryLayoutPrefs{values: map[string]bool{}}
	h := NewLayoutHandler(prefs)

	c, rec := testContext(http.MethodPut, "/layout/preferences/main", map[string]bool{"collapsed": true}, studentClaims)
	c.Params = gin.Params{{Key: "variant", Value: "main"}}
	h.Put(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, prefs.values["mainSidebarCollapsed"])

	c, rec = testContext(http.MethodPost, "/layout/preferences/main/toggle", nil, studentClaims)
	c.Params = gin.Params{{Key: "variant", Value: "main"}}
	h.Toggle(c)
	var status SidebarStatus
	decodeEnvelope(t, rec, &status)
	assert.Equal(t, service.SidebarExpanded, status.State)
	assert.False(t, status.Collapsed)
	assert.Equal(t, models.DrawerWidthExpanded, status.DrawerWidth)
	assert.False(t, prefs.values["mainSidebarCollapsed"])

	c, rec = testContext(http.MethodPut, "/layout/preferences/main", map[string]string{}, studentClaims)
	c.Params = gin.Params{{Key: "variant", Value: "main"}}
	h.Put(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = testContext(http.MethodGet, "/layout/preferences/wide", nil, studentClaims)
	c.Params = gin.Params{{Key: "variant", Value: "wide"}}
	h.Get(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeNotifications struct {
	items    []models.Notification
	count    int64
	hit      bool
	markedID string
	topic    string
}

func (f *fakeNotifications) List(context.Context, string, models.UserRole) ([]models.Notification, error) {
	return f.items, nil
}

func (f *fakeNotifications) CachedUnreadCount(context.Context, string) (int64, bool, error) {
	return f.count, f.hit, nil
}

func (f *fakeNotifications) Summary(context.Context, string, models.UserRole) (*models.NotificationSummary, error) {
	return &models.NotificationSummary{Content: f.items, Count: f.count}, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, id, _ string) error {
	if id == "missing" {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	f.markedID = id
	return nil
}

func (f *fakeNotifications) MarkAllRead(context.Context, string) (int64, error) {
	return f.count, nil
}

func (f *fakeNotifications) CreateAnnouncement(_ context.Context, actor *models.JWTClaims, req models.AnnouncementRequest) (*models.Notification, error) {
	if actor.Role == models.RoleStudent {
		return nil, appErrors.ErrForbidden
	}
	return &models.Notification{ID: "n1", Title: req.Title, IsGlobal: true}, nil
}

func (f *fakeNotifications) Announcements(context.Context) ([]models.Notification, error) {
	return f.items, nil
}

func (f *fakeNotifications) BroadcastTopic(_ context.Context, _ *models.JWTClaims, topic string, event models.TopicEvent) (*models.TopicEvent, error) {
	f.topic = topic
	return &event, nil
}

func TestNotificationHandlerShapes(t *testing.T) {
	svc := &fakeNotifications{items: []models.Notification{{ID: "a"}}, count: 4, hit: true}
	h := NewNotificationHandler(svc)

	c, rec := testContext(http.MethodGet, "/notifications/user", nil, studentClaims)
	h.List(c)
	var list models.NotificationList
	decodeEnvelope(t, rec, &list)
	require.Len(t, list.Content, 1)

	c, rec = testContext(http.MethodGet, "/notifications/user/unread/count", nil, studentClaims)
	h.UnreadCount(c)
	var count models.UnreadCount
	env := decodeEnvelope(t, rec, &count)
	assert.Equal(t, int64(4), count.Count)
	assert.Equal(t, true, env.Meta["cache_hit"])

	c, rec = testContext(http.MethodPost, "/notifications/mark-read/missing", nil, studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.MarkRead(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = testContext(http.MethodPost, "/notifications/mark-read/a", nil, studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "a"}}
	h.MarkRead(c)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "a", svc.markedID)

	c, rec = testContext(http.MethodPost, "/notifications/announcements", map[string]string{"title": "Exam", "content": "Monday"}, studentClaims)
	h.CreateAnnouncement(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = testContext(http.MethodPost, "/notifications/announcements", map[string]string{"title": "Exam", "content": "Monday"}, adminClaims)
	h.CreateAnnouncement(c)
	assert.Equal(t, http.StatusCreated, rec.Code)

	c, rec = testContext(http.MethodPost, "/notifications/assignment", map[string]string{"message": "Homework 3"}, adminClaims)
	h.Broadcast("assignment")(c)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "assignment", svc.topic)
}

type fakeRoutes struct{}

func (fakeRoutes) Routes() []models.Route {
	return []models.Route{{Path: "/", Page: "Home", Layout: models.LayoutPublic}}
}

func (fakeRoutes) Resolve(path string, claims *models.JWTClaims) models.GuardDecision {
	if claims == nil {
		return models.GuardDecision{Path: path, Redirect: "/login", Reason: models.GuardUnauthenticated}
	}
	return models.GuardDecision{Path: path, Allowed: true, Reason: models.GuardAllowed, Route: &models.Route{Path: path, Page: "StudentDashboard", Layout: models.LayoutDashboard}}
}

func TestRouteHandler(t *testing.T) {
	h := NewRouteHandler(fakeRoutes{})

	c, rec := testContext(http.MethodGet, "/routes", nil, nil)
	h.List(c)
	var routes []models.Route
	decodeEnvelope(t, rec, &routes)
	assert.Len(t, routes, 1)

	c, rec = testContext(http.MethodGet, "/routes/resolve?path=/student", nil, nil)
	h.Resolve(c)
	var decision models.GuardDecision
	decodeEnvelope(t, rec, &decision)
	assert.Equal(t, "/login", decision.Redirect)

	c, rec = testContext(http.MethodGet, "/routes/resolve", nil, nil)
	h.Resolve(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPageHandlerBehindGuard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if c.GetHeader("X-Test-User") == "student" {
			c.Set(middleware.ContextUserKey, studentClaims)
		}
		c.Next()
	}, middleware.Guard(fakeRoutes{}))
	router.NoRoute(NewPageHandler(&fakeNavigation{}).Serve)

	req := httptest.NewRequest(http.MethodGet, "/student", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/student", nil)
	req.Header.Set("Accept", "text/html")
	req.Header.Set("X-Test-User", "student")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Student Portal")

	req = httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeHistory struct{}

func (fakeHistory) History(_ context.Context, roomID string, limit int) (*models.ChatHistory, error) {
	if roomID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "room id is required")
	}
	return &models.ChatHistory{RoomID: roomID, Messages: make([]models.ChatMessage, limit)}, nil
}

func TestChatHandlerHistory(t *testing.T) {
	h := NewChatHandler(fakeHistory{})

	c, rec := testContext(http.MethodGet, "/chat/rooms/7/messages?limit=2", nil, studentClaims)
	c.Params = gin.Params{{Key: "roomId", Value: "7"}}
	h.History(c)
	var history models.ChatHistory
	decodeEnvelope(t, rec, &history)
	assert.Equal(t, "7", history.RoomID)
	assert.Len(t, history.Messages, 2)
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), map[string]ReadinessCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return appErrors.ErrUnavailable },
	})

	c, rec := testContext(http.MethodGet, "/ready", nil, nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)

	c, rec = testContext(http.MethodGet, "/health", nil, nil)
	h.Health(c)
	assert.Equal(t, http.StatusOK, rec.Code)
}
