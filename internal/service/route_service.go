package service

import (
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/epathshala/portal-api/internal/models"
)

const (
	// LoginPath is where guests are sent from protected pages.
	LoginPath = "/login"
	// UnauthorizedPath is where sessions without the required role land.
	UnauthorizedPath = "/unauthorized"
	// CatchAllPath is the fallback pattern; it redirects home.
	CatchAllPath = "*"
)

func publicRoute(p, page string) models.Route {
	return models.Route{Path: p, Page: page, Layout: models.LayoutPublic}
}

func bareRoute(p, page string) models.Route {
	return models.Route{Path: p, Page: page, Layout: models.LayoutBare}
}

func redirectRoute(p, target string) models.Route {
	return models.Route{Path: p, RedirectTo: target}
}

func roleRoute(role models.UserRole, p, page string) models.Route {
	return models.Route{Path: p, Page: page, Layout: models.LayoutDashboard, Protected: true, RequiredRole: role}
}

func sessionRoute(p, page string) models.Route {
	return models.Route{Path: p, Page: page, Layout: models.LayoutSidebar, Protected: true}
}

// sharedRoute is a session route limited to some roles.
func sharedRoute(p, page string, roles ...models.UserRole) models.Route {
	r := sessionRoute(p, page)
	r.AllowedRoles = roles
	return r
}

// routeTable mirrors the portal's page mounts. Menu entries that point at a
// path without its own page are aliased to the page that serves them.
var routeTable = []models.Route{
	publicRoute("/", "HomePage"),
	publicRoute("/home", "HomePage"),
	bareRoute(LoginPath, "LoginPage"),
	bareRoute("/forgot-password", "ForgotPassword"),
	publicRoute("/about", "AboutUs"),
	publicRoute("/contact", "ContactUs"),
	publicRoute("/chatbot", "ChatbotPage"),
	publicRoute("/help", "HelpPage"),
	bareRoute(UnauthorizedPath, "Unauthorized"),

	redirectRoute("/admin", "/admin/dashboard"),
	roleRoute(models.RoleAdmin, "/admin/dashboard", "AdminDashboard"),
	roleRoute(models.RoleAdmin, "/admin/forum", "Forum"),
	roleRoute(models.RoleAdmin, "/admin/chat", "ThreadedChat"),
	roleRoute(models.RoleAdmin, "/admin/notifications", "Notifications"),
	roleRoute(models.RoleAdmin, "/admin/summary", "AdminSummary"),
	roleRoute(models.RoleAdmin, "/admin/add-student", "AdminAddStudent"),
	roleRoute(models.RoleAdmin, "/admin/add-teacher", "AdminAddTeacher"),
	roleRoute(models.RoleAdmin, "/admin/assign-teacher", "AdminAssignTeacher"),
	roleRoute(models.RoleAdmin, "/admin/reset-password", "AdminResetPassword"),
	roleRoute(models.RoleAdmin, "/admin/calendar", "AdminAcademicCalendar"),
	redirectRoute("/admin/academic-calendar", "/admin/calendar"),
	roleRoute(models.RoleAdmin, "/admin/online-classes", "AdminOnlineClasses"),
	roleRoute(models.RoleAdmin, "/admin/sessions", "AdminSessionManagement"),
	redirectRoute("/admin/session-management", "/admin/sessions"),
	roleRoute(models.RoleAdmin, "/admin/profile", "AdminProfile"),

	roleRoute(models.RoleStudent, "/student", "StudentDashboard"),
	redirectRoute("/student/dashboard", "/student"),
	roleRoute(models.RoleStudent, "/student/assignments", "StudentAssignmentsPage"),
	roleRoute(models.RoleStudent, "/student/exams", "StudentExamsPage"),
	roleRoute(models.RoleStudent, "/student/exams/:examId", "StudentExamInterface"),
	roleRoute(models.RoleStudent, "/student/exams/:examId/result", "StudentExamResultPage"),
	roleRoute(models.RoleStudent, "/student/grades", "StudentGradesPage"),
	roleRoute(models.RoleStudent, "/student/progress", "StudentProgressPage"),
	roleRoute(models.RoleStudent, "/student/attendance", "StudentAttendancePage"),
	roleRoute(models.RoleStudent, "/student/leave-requests", "StudentLeaveRequestsPage"),
	roleRoute(models.RoleStudent, "/student/calendar", "StudentCalendarPage"),
	redirectRoute("/student/online-classes", "/student"),
	roleRoute(models.RoleStudent, "/student/forum", "Forum"),
	roleRoute(models.RoleStudent, "/student/chat", "Chat"),
	roleRoute(models.RoleStudent, "/student/notifications", "Notifications"),
	roleRoute(models.RoleStudent, "/student/profile", "StudentProfile"),

	roleRoute(models.RoleTeacher, "/teacher", "TeacherDashboard"),
	redirectRoute("/teacher/dashboard", "/teacher"),
	roleRoute(models.RoleTeacher, "/teacher/attendance", "TeacherAttendancePage"),
	roleRoute(models.RoleTeacher, "/teacher/grades", "TeacherGradesPage"),
	roleRoute(models.RoleTeacher, "/teacher/assignments", "TeacherAssignmentsPage"),
	roleRoute(models.RoleTeacher, "/teacher/leave-requests", "TeacherLeaveRequestsPage"),
	roleRoute(models.RoleTeacher, "/teacher/calendar", "TeacherCalendarPage"),
	roleRoute(models.RoleTeacher, "/teacher/online-classes", "TeacherOnlineClassesPage"),
	roleRoute(models.RoleTeacher, "/teacher/exams", "TeacherExamsPage"),
	roleRoute(models.RoleTeacher, "/teacher/exams/create", "FacultyExamManager"),
	roleRoute(models.RoleTeacher, "/teacher/exams/:examId/edit", "FacultyExamManager"),
	roleRoute(models.RoleTeacher, "/teacher/exams/:examId/results", "FacultyExamManager"),
	roleRoute(models.RoleTeacher, "/teacher/forum", "Forum"),
	roleRoute(models.RoleTeacher, "/teacher/chat", "Chat"),
	roleRoute(models.RoleTeacher, "/teacher/notifications", "Notifications"),
	roleRoute(models.RoleTeacher, "/teacher/profile", "TeacherProfile"),

	roleRoute(models.RoleParent, "/parent", "ParentDashboard"),
	redirectRoute("/parent/dashboard", "/parent"),
	roleRoute(models.RoleParent, "/parent/child-progress", "ParentChildProgressPage"),
	roleRoute(models.RoleParent, "/parent/leave-approvals", "ParentLeaveApprovalsPage"),
	roleRoute(models.RoleParent, "/parent/calendar", "ParentCalendarPage"),
	roleRoute(models.RoleParent, "/parent/forum", "Forum"),
	roleRoute(models.RoleParent, "/parent/chat", "Chat"),
	roleRoute(models.RoleParent, "/parent/notifications", "Notifications"),
	roleRoute(models.RoleParent, "/parent/profile", "ParentProfile"),

	sessionRoute("/forum/thread/:threadId", "ThreadDetail"),
	sessionRoute("/chat", "Chat"),
	sessionRoute("/threaded-chat", "ThreadedChat"),
	sessionRoute("/forum", "Forum"),
	sessionRoute("/notifications", "Notifications"),
	sharedRoute("/exams", "ExamDashboard", models.RoleAdmin, models.RoleTeacher, models.RoleStudent),

	redirectRoute(CatchAllPath, "/"),
}

// RouteService resolves portal paths against the route table and applies the
// session guard.
type RouteService struct {
	routes  []models.Route
	exact   map[string]int
	metrics *MetricsService
	logger  *zap.Logger
}

// NewRouteService builds the resolver over the static route table.
func NewRouteService(metrics *MetricsService, logger *zap.Logger) *RouteService {
	return newRouteService(routeTable, metrics, logger)
}

func newRouteService(routes []models.Route, metrics *MetricsService, logger *zap.Logger) *RouteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	exact := make(map[string]int, len(routes))
	for i, r := range routes {
		if r.Path == CatchAllPath || strings.Contains(r.Path, "/:") {
			continue
		}
		exact[r.Path] = i
	}
	return &RouteService{routes: routes, exact: exact, metrics: metrics, logger: logger}
}

// Routes returns a copy of the table.
func (s *RouteService) Routes() []models.Route {
	out := make([]models.Route, len(s.routes))
	for i, r := range s.routes {
		out[i] = copyRoute(r)
	}
	return out
}

// Resolve decides whether claims may open rawPath. A nil claims value is a
// guest. Redirect routes are followed without a session check; the target is
// guarded on its own request.
func (s *RouteService) Resolve(rawPath string, claims *models.JWTClaims) models.GuardDecision {
	p := normalizePath(rawPath)
	decision := s.resolve(p, claims)
	decision.Path = p
	s.metrics.RecordGuardDecision(decision.Reason)
	if !decision.Allowed {
		s.logger.Debug("route guard redirect",
			zap.String("path", p),
			zap.String("redirect", decision.Redirect),
			zap.String("reason", string(decision.Reason)),
		)
	}
	return decision
}

func (s *RouteService) resolve(p string, claims *models.JWTClaims) models.GuardDecision {
	route, params, ok := s.match(p)
	if !ok {
		return models.GuardDecision{Redirect: "/", Reason: models.GuardNoMatchingRoute}
	}
	if route.RedirectTo != "" {
		return models.GuardDecision{Redirect: route.RedirectTo, Reason: models.GuardRedirectRoute, Route: &route, Params: params}
	}
	if route.Protected {
		if claims == nil || claims.UserID == "" {
			return models.GuardDecision{Redirect: LoginPath, Reason: models.GuardUnauthenticated, Route: &route, Params: params}
		}
		if route.RequiredRole != "" && claims.Role != route.RequiredRole {
			return models.GuardDecision{Redirect: UnauthorizedPath, Reason: models.GuardRoleMismatch, Route: &route, Params: params}
		}
		if len(route.AllowedRoles) > 0 && !containsRole(route.AllowedRoles, claims.Role) {
			return models.GuardDecision{Redirect: UnauthorizedPath, Reason: models.GuardRoleNotAllowed, Route: &route, Params: params}
		}
	}
	return models.GuardDecision{Allowed: true, Reason: models.GuardAllowed, Route: &route, Params: params}
}

// match prefers static paths over parameterised ones. The catch-all entry is
// never matched; unmatched paths are handled by resolve.
func (s *RouteService) match(p string) (models.Route, map[string]string, bool) {
	if i, ok := s.exact[p]; ok {
		return copyRoute(s.routes[i]), nil, true
	}
	segments := splitPath(p)
	for _, r := range s.routes {
		if !strings.Contains(r.Path, "/:") {
			continue
		}
		if params, ok := matchPattern(splitPath(r.Path), segments); ok {
			return copyRoute(r), params, true
		}
	}
	return models.Route{}, nil, false
}

func matchPattern(pattern, segments []string) (map[string]string, bool) {
	if len(pattern) != len(segments) {
		return nil, false
	}
	params := map[string]string{}
	for i, seg := range pattern {
		if strings.HasPrefix(seg, ":") {
			if segments[i] == "" {
				return nil, false
			}
			params[seg[1:]] = segments[i]
			continue
		}
		if seg != segments[i] {
			return nil, false
		}
	}
	return params, true
}

func splitPath(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func normalizePath(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return path.Clean(raw)
}

func containsRole(roles []models.UserRole, role models.UserRole) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func copyRoute(r models.Route) models.Route {
	if r.AllowedRoles != nil {
		r.AllowedRoles = append([]models.UserRole(nil), r.AllowedRoles...)
	}
	return r
}
