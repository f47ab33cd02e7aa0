package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/epathshala/portal-api/internal/models"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type welcomeNotifier interface {
	Notify(ctx context.Context, in models.NotificationInput) (*models.Notification, error)
}

// CreateUserRequest is the admin "add student/teacher/parent" form.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required,max=120"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN STUDENT TEACHER PARENT"`
	Password string          `json:"password" validate:"required,min=6"`
}

// UpdateUserRequest edits an account.
type UpdateUserRequest struct {
	FullName string          `json:"full_name" validate:"required,max=120"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN STUDENT TEACHER PARENT"`
	Active   *bool           `json:"active"`
}

// AuditMeta identifies where an admin action came from.
type AuditMeta struct {
	IP        string
	UserAgent string
}

// UserService lets administrators manage portal accounts.
type UserService struct {
	repo      userRepository
	notifier  welcomeNotifier
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService. notifier and cacheSvc
// may be nil.
func NewUserService(repo userRepository, notifier welcomeNotifier, cacheSvc *CacheService, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &UserService{repo: repo, notifier: notifier, cache: cacheSvc, validator: validate, logger: logger}
}

// List returns a page of accounts and its pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	for _, role := range filter.Roles {
		if !role.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown role "+string(role))
		}
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create adds an active account and greets the new user with a system
// notification.
func (s *UserService) Create(ctx context.Context, actor *models.JWTClaims, req CreateUserRequest, meta AuditMeta) (*models.User, error) {
	req.Role = models.UserRole(strings.ToUpper(strings.TrimSpace(string(req.Role))))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid create user payload")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		Active:       true,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.audit(ctx, actor, models.AuditActionUserCreate, user.ID, nil, map[string]interface{}{"email": user.Email, "role": user.Role}, meta)
	s.welcome(ctx, actor, user)
	return user, nil
}

// Update edits name, role and active flag. Deactivating an account signs it
// out everywhere.
func (s *UserService) Update(ctx context.Context, actor *models.JWTClaims, id string, req UpdateUserRequest, meta AuditMeta) (*models.User, error) {
	req.Role = models.UserRole(strings.ToUpper(strings.TrimSpace(string(req.Role))))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid update payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != nil && actor.UserID == id && (req.Role != user.Role || (req.Active != nil && !*req.Active)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "administrators cannot demote or deactivate themselves")
	}

	old := map[string]interface{}{"full_name": user.FullName, "role": user.Role, "active": user.Active}
	wasActive := user.Active

	user.FullName = strings.TrimSpace(req.FullName)
	user.Role = req.Role
	if req.Active != nil {
		user.Active = *req.Active
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	if wasActive && !user.Active {
		s.revokeSessions(ctx, user.ID)
		s.forget(ctx, user.ID)
	}

	s.audit(ctx, actor, models.AuditActionUserUpdate, user.ID, old, map[string]interface{}{"full_name": user.FullName, "role": user.Role, "active": user.Active}, meta)
	return user, nil
}

// Deactivate disables an account and revokes its sessions.
func (s *UserService) Deactivate(ctx context.Context, actor *models.JWTClaims, id string, meta AuditMeta) error {
	if actor != nil && actor.UserID == id {
		return appErrors.Clone(appErrors.ErrForbidden, "administrators cannot deactivate themselves")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}
	s.revokeSessions(ctx, id)
	s.forget(ctx, id)

	s.audit(ctx, actor, models.AuditActionUserDeactivate, user.ID, map[string]interface{}{"active": user.Active}, map[string]interface{}{"active": false}, meta)
	return nil
}

func (s *UserService) revokeSessions(ctx context.Context, userID string) {
	if err := s.repo.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke sessions of deactivated user", zap.String("user_id", userID), zap.Error(err))
	}
}

// forget drops the user's cached layout flags and unread count so a
// reactivated account reads fresh state.
func (s *UserService) forget(ctx context.Context, userID string) {
	s.cache.Invalidate(ctx, layoutCacheKey(userID, "*"))
	s.cache.Delete(ctx, unreadCacheKey(userID))
}

func (s *UserService) welcome(ctx context.Context, actor *models.JWTClaims, user *models.User) {
	if s.notifier == nil {
		return
	}
	in := models.NotificationInput{
		Title:       "Welcome to ePathshala",
		Content:     "Your " + strings.ToLower(string(user.Role)) + " account is ready. Sign in to get started.",
		Type:        models.NotificationTypeSystem,
		Priority:    models.NotificationPriorityMedium,
		RecipientID: user.ID,
	}
	if actor != nil {
		in.SenderID = &actor.UserID
	}
	if _, err := s.notifier.Notify(ctx, in); err != nil {
		s.logger.Warn("failed to send welcome notification", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (s *UserService) audit(ctx context.Context, actor *models.JWTClaims, action, userID string, oldValues, newValues map[string]interface{}, meta AuditMeta) {
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "users",
		ResourceID: &userID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if actor != nil {
		entry.UserID = &actor.UserID
	}
	if oldValues != nil {
		raw, _ := json.Marshal(oldValues)
		entry.OldValues = models.AuditJSON(string(raw))
	}
	if newValues != nil {
		raw, _ := json.Marshal(newValues)
		entry.NewValues = models.AuditJSON(string(raw))
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", action), zap.Error(err))
	}
}
