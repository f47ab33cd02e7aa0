package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/epathshala/portal-api/internal/models"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
)

func item(text, icon, path string) models.NavigationItem {
	return models.NavigationItem{Text: text, Icon: icon, Path: path}
}

var (
	adminMenu = models.NavigationConfig{
		Role:  models.RoleAdmin,
		Title: "Admin Panel",
		Icon:  "AdminPanelSettings",
		Color: "#d32f2f",
		Sections: []models.NavigationSection{
			{Title: "Dashboard", Items: []models.NavigationItem{
				item("Overview", "Dashboard", "/admin/dashboard"),
				item("Summary", "TrendingUp", "/admin/summary"),
			}},
			{Title: "User Management", Items: []models.NavigationItem{
				item("Add Student", "PersonAdd", "/admin/add-student"),
				item("Add Teacher", "GroupAdd", "/admin/add-teacher"),
				item("Assign Teacher", "Link", "/admin/assign-teacher"),
			}},
			{Title: "Academic", Items: []models.NavigationItem{
				item("Academic Calendar", "EventNote", "/admin/academic-calendar"),
				item("Online Classes", "VideoLibrary", "/admin/online-classes"),
				item("Session Management", "Security", "/admin/session-management"),
			}},
			{Title: "System", Items: []models.NavigationItem{
				item("Reset Password", "Security", "/admin/reset-password"),
			}},
		},
	}

	studentMenu = models.NavigationConfig{
		Role:  models.RoleStudent,
		Title: "Student Portal",
		Icon:  "School",
		Color: "#1976d2",
		Sections: []models.NavigationSection{
			{Title: "Dashboard", Items: []models.NavigationItem{
				item("Overview", "Dashboard", "/student/dashboard"),
			}},
			{Title: "Academic", Items: []models.NavigationItem{
				item("Assignments", "Assignment", "/student/assignments"),
				item("Exams", "Quiz", "/student/exams"),
				item("Grades", "Grade", "/student/grades"),
				item("Attendance", "CheckCircle", "/student/attendance"),
			}},
			{Title: "Resources", Items: []models.NavigationItem{
				item("Online Classes", "VideoCall", "/student/online-classes"),
				item("Calendar", "CalendarToday", "/student/calendar"),
				item("Forum", "Forum", "/student/forum"),
			}},
			{Title: "Requests", Items: []models.NavigationItem{
				item("Leave Requests", "Pending", "/student/leave-requests"),
			}},
		},
	}

	teacherMenu = models.NavigationConfig{
		Role:  models.RoleTeacher,
		Title: "Teacher Portal",
		Icon:  "Person",
		Color: "#388e3c",
		Sections: []models.NavigationSection{
			{Title: "Dashboard", Items: []models.NavigationItem{
				item("Overview", "Dashboard", "/teacher/dashboard"),
			}},
			{Title: "Teaching", Items: []models.NavigationItem{
				item("Assignments", "Assignment", "/teacher/assignments"),
				item("Exams", "Quiz", "/teacher/exams"),
				item("Grades", "Grade", "/teacher/grades"),
				item("Attendance", "CheckCircle", "/teacher/attendance"),
			}},
			{Title: "Resources", Items: []models.NavigationItem{
				item("Online Classes", "VideoCall", "/teacher/online-classes"),
				item("Calendar", "CalendarToday", "/teacher/calendar"),
			}},
			{Title: "Management", Items: []models.NavigationItem{
				item("Leave Requests", "Pending", "/teacher/leave-requests"),
			}},
		},
	}

	parentMenu = models.NavigationConfig{
		Role:  models.RoleParent,
		Title: "Parent Portal",
		Icon:  "FamilyRestroom",
		Color: "#f57c00",
		Sections: []models.NavigationSection{
			{Title: "Dashboard", Items: []models.NavigationItem{
				item("Overview", "Dashboard", "/parent/dashboard"),
			}},
			{Title: "Child Progress", Items: []models.NavigationItem{
				item("Progress Tracking", "TrendingUp", "/parent/child-progress"),
				item("Calendar", "CalendarToday", "/parent/calendar"),
			}},
			{Title: "Management", Items: []models.NavigationItem{
				item("Leave Approvals", "CheckCircle", "/parent/leave-approvals"),
			}},
		},
	}
)

// menuFor is the exhaustive role -> menu table.
func menuFor(role models.UserRole) (models.NavigationConfig, bool) {
	switch role {
	case models.RoleAdmin:
		return adminMenu, true
	case models.RoleStudent:
		return studentMenu, true
	case models.RoleTeacher:
		return teacherMenu, true
	case models.RoleParent:
		return parentMenu, true
	default:
		return models.NavigationConfig{}, false
	}
}

type shellPreferences interface {
	Get(ctx context.Context, userID string, variant models.LayoutVariant) (*models.LayoutPreference, error)
}

type shellUnreadCounter interface {
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

// NavigationService builds role menus and the layout shell around pages.
type NavigationService struct {
	defaultRole models.UserRole
	prefs       shellPreferences
	unread      shellUnreadCounter
	logger      *zap.Logger
}

// NewNavigationService constructs the service. An invalid defaultRole falls
// back to STUDENT.
func NewNavigationService(defaultRole models.UserRole, prefs shellPreferences, unread shellUnreadCounter, logger *zap.Logger) *NavigationService {
	if !defaultRole.Valid() {
		defaultRole = models.RoleStudent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NavigationService{defaultRole: defaultRole, prefs: prefs, unread: unread, logger: logger}
}

// MenuFor returns a copy of the role's menu. fallback is true when role was
// not recognised and the default role's menu was used instead.
func (s *NavigationService) MenuFor(role models.UserRole) (menu models.NavigationConfig, fallback bool) {
	cfg, ok := menuFor(role)
	if !ok {
		cfg, _ = menuFor(s.defaultRole)
		fallback = true
	}
	return cfg.Clone(), fallback
}

// Menus returns every role's menu keyed by role.
func (s *NavigationService) Menus() map[models.UserRole]models.NavigationConfig {
	out := make(map[models.UserRole]models.NavigationConfig, len(models.AllRoles))
	for _, role := range models.AllRoles {
		out[role], _ = s.MenuFor(role)
	}
	return out
}

// Shell composes the app bar and sidebar state for the session. The unread
// badge degrades to zero when notifications cannot be counted.
func (s *NavigationService) Shell(ctx context.Context, claims *models.JWTClaims, variant models.LayoutVariant) (*models.Shell, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if variant == "" {
		variant = models.LayoutUnified
	}
	if variant.StorageKey() == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown layout variant")
	}

	menu, fallback := s.MenuFor(claims.Role)
	shell := &models.Shell{
		User:               claims.Info(),
		Menu:               menu,
		MenuFallback:       fallback,
		Layout:             variant,
		HoverCollapseDelay: models.HoverCollapseDelayMS,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if s.prefs == nil {
			return nil
		}
		pref, err := s.prefs.Get(gctx, claims.UserID, variant)
		if err != nil {
			return err
		}
		shell.Collapsed = pref.Collapsed
		return nil
	})
	g.Go(func() error {
		if s.unread == nil {
			return nil
		}
		count, err := s.unread.UnreadCount(gctx, claims.UserID)
		if err != nil {
			s.logger.Warn("shell unread count unavailable", zap.String("user_id", claims.UserID), zap.Error(err))
			return nil
		}
		shell.UnreadCount = count
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	shell.DrawerWidth = models.DrawerWidthExpanded
	if shell.Collapsed {
		shell.DrawerWidth = models.DrawerWidthCollapsed
	}
	if fallback {
		s.logger.Warn("unknown role, using default menu", zap.String("role", string(claims.Role)), zap.String("default", string(s.defaultRole)))
	}
	return shell, nil
}
