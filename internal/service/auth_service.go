package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/epathshala/portal-api/internal/models"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	FindSessionByID(ctx context.Context, id string) (*models.RefreshToken, error)
	GetSessionInfo(ctx context.Context, id string) (*models.SessionInfo, error)
	ListActiveSessions(ctx context.Context, now time.Time) ([]models.SessionInfo, error)
	TouchSession(ctx context.Context, id string, ts time.Time) error
	RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error
	SavePasswordReset(ctx context.Context, reset *models.PasswordReset) error
	FindPasswordReset(ctx context.Context, userID string) (*models.PasswordReset, error)
	DeletePasswordReset(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// OTPSender delivers a password reset code to the account holder.
type OTPSender interface {
	SendOTP(ctx context.Context, user *models.User, code string, expiresAt time.Time) error
}

// LogOTPSender writes reset codes to the debug log. It stands in for a mail
// gateway in development.
type LogOTPSender struct {
	Logger *zap.Logger
}

// SendOTP implements OTPSender.
func (s LogOTPSender) SendOTP(_ context.Context, user *models.User, code string, expiresAt time.Time) error {
	if s.Logger != nil {
		s.Logger.Debug("password reset code issued", zap.String("email", user.Email), zap.String("otp", code), zap.Time("expires_at", expiresAt))
	}
	return nil
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	ExpiringSoonWindow time.Duration
	OTPExpiry          time.Duration
	Issuer             string
	Audience           []string
	SingleSession      bool
	// CheckSession makes ValidateToken reject tokens whose session was revoked.
	CheckSession bool
}

// AuthService owns login sessions: it is the only place that creates or
// revokes them.
type AuthService struct {
	repo      authUserRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	otp       OTPSender
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if config.ExpiringSoonWindow <= 0 {
		config.ExpiringSoonWindow = 10 * time.Minute
	}
	if config.OTPExpiry <= 0 {
		config.OTPExpiry = 10 * time.Minute
	}
	return &AuthService{
		repo:      repo,
		validator: validate,
		logger:    logger,
		config:    config,
		otp:       LogOTPSender{Logger: logger},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithOTPSender replaces the reset code delivery channel.
func (s *AuthService) WithOTPSender(sender OTPSender) *AuthService {
	if sender != nil {
		s.otp = sender
	}
	return s
}

// Status reports that the auth service is up. It never touches storage.
func (s *AuthService) Status() models.ServiceStatus {
	return models.ServiceStatus{
		Status:    "OK",
		Message:   "Authentication service is running",
		Timestamp: s.now().UnixMilli(),
	}
}

// Login authenticates a user for the requested portal and opens a session.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid login payload")
	}
	requested, _ := models.ParseRole(req.Role)

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.audit(ctx, user.ID, models.AuditActionLoginFailed, `{"reason":"password"}`, req.IP, req.UserAgent)
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	if user.Role != requested {
		s.audit(ctx, user.ID, models.AuditActionLoginFailed, fmt.Sprintf(`{"reason":"role","requested":%q}`, requested), req.IP, req.UserAgent)
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid role for this account")
	}

	if s.config.SingleSession {
		if err := s.repo.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
			s.logger.Warn("failed to revoke previous sessions", zap.Error(err))
		}
	}

	session, err := s.openSession(ctx, user.ID, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}

	accessToken, expiresAt, err := s.generateAccessToken(user, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
	s.audit(ctx, user.ID, models.AuditActionLogin, `{"status":"success"}`, req.IP, req.UserAgent)

	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: session.Token,
		SessionID:    session.ID,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		ExpiresAt:    expiresAt,
		Redirect:     user.Role.HomePath(),
		User:         user.Info(),
		IssuedAt:     s.now(),
	}, nil
}

// RefreshToken rotates a session's refresh token and issues a new access token.
func (s *AuthService) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid refresh payload")
	}

	stored, err := s.repo.FindRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch refresh token")
	}
	if !stored.Active(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrSessionExpired, "refresh token is expired or revoked")
	}

	user, err := s.repo.FindByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "associated user no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}

	if err := s.repo.RevokeRefreshToken(ctx, stored.ID, s.now()); err != nil {
		s.logger.Warn("failed to revoke used refresh token", zap.Error(err))
	}

	session, err := s.openSession(ctx, user.ID, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}

	accessToken, _, err := s.generateAccessToken(user, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate access token")
	}
	s.audit(ctx, user.ID, models.AuditActionRefresh, `{"refresh":"rotated"}`, req.IP, req.UserAgent)

	return &models.RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: session.Token,
		SessionID:    session.ID,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     s.now(),
	}, nil
}

// Logout revokes the caller's session. refreshToken is optional; without it
// the session named in the access token is revoked.
func (s *AuthService) Logout(ctx context.Context, claims *models.JWTClaims, refreshToken, ip, userAgent string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}

	var (
		stored *models.RefreshToken
		err    error
	)
	switch {
	case refreshToken != "":
		stored, err = s.repo.FindRefreshToken(ctx, refreshToken)
	case claims.SessionID != "":
		stored, err = s.repo.FindSessionByID(ctx, claims.SessionID)
	default:
		return appErrors.Clone(appErrors.ErrValidation, "refresh token is required")
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUnauthorized, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	if stored.UserID != claims.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "session does not belong to user")
	}

	if err := s.repo.RevokeRefreshToken(ctx, stored.ID, s.now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke session")
	}
	s.audit(ctx, claims.UserID, models.AuditActionLogout, `{"status":"logout"}`, ip, userAgent)
	return nil
}

// ChangePassword changes the password for the given user ID.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid change password payload")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "old password does not match")
	}

	if err := s.setPassword(ctx, userID, req.NewPassword); err != nil {
		return err
	}
	s.audit(ctx, userID, models.AuditActionPasswordChange, `{"status":"changed"}`, "", "")
	return nil
}

// ForgotPassword issues a six digit reset code. Unknown emails succeed
// silently so the endpoint cannot be used to probe accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid forgot password payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	if !user.Active {
		return nil
	}

	code, err := generateOTP()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate code")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash code")
	}

	now := s.now()
	reset := &models.PasswordReset{UserID: user.ID, OTPHash: string(hash), ExpiresAt: now.Add(s.config.OTPExpiry), CreatedAt: now}
	if err := s.repo.SavePasswordReset(ctx, reset); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store reset code")
	}
	if err := s.otp.SendOTP(ctx, user, code, reset.ExpiresAt); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to deliver reset code")
	}
	return nil
}

// VerifyOTP checks a reset code, sets the new password and ends every session.
func (s *AuthService) VerifyOTP(ctx context.Context, req models.VerifyOTPRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid verify otp payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidOTP, "invalid or expired code")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	reset, err := s.repo.FindPasswordReset(ctx, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidOTP, "invalid or expired code")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reset code")
	}
	if !s.now().Before(reset.ExpiresAt) {
		_ = s.repo.DeletePasswordReset(ctx, user.ID)
		return appErrors.Clone(appErrors.ErrInvalidOTP, "invalid or expired code")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(reset.OTPHash), []byte(req.OTP)); err != nil {
		return appErrors.Clone(appErrors.ErrInvalidOTP, "invalid or expired code")
	}

	if err := s.setPassword(ctx, user.ID, req.NewPassword); err != nil {
		return err
	}
	if err := s.repo.DeletePasswordReset(ctx, user.ID); err != nil {
		s.logger.Warn("failed to consume reset code", zap.Error(err))
	}
	s.audit(ctx, user.ID, models.AuditActionPasswordReset, `{"status":"reset"}`, "", "")
	return nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	if s.config.CheckSession && claims.SessionID != "" {
		session, err := s.repo.FindSessionByID(ctx, claims.SessionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrSessionExpired, "session not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
		}
		if session.Revoked {
			return nil, appErrors.Clone(appErrors.ErrSessionExpired, "session has been revoked")
		}
		if err := s.repo.TouchSession(ctx, session.ID, s.now()); err != nil {
			s.logger.Debug("failed to touch session", zap.Error(err))
		}
	}

	return claims, nil
}

// TokenStatus reports how long the presented token has left.
func (s *AuthService) TokenStatus(claims *models.JWTClaims, now time.Time) models.TokenStatus {
	status := models.TokenStatus{UserID: claims.UserID, Role: claims.Role}
	if claims.IssuedAt != nil {
		status.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt == nil {
		return status
	}
	status.ExpiresAt = claims.ExpiresAt.Time
	remaining := status.ExpiresAt.Sub(now)
	if remaining <= 0 {
		status.Expired = true
		return status
	}
	status.RemainingSeconds = int64(remaining / time.Second)
	status.ExpiringSoon = remaining <= s.config.ExpiringSoonWindow
	return status
}

// GetSession returns one session. Only its owner or an admin may see it.
func (s *AuthService) GetSession(ctx context.Context, actor *models.JWTClaims, sessionID string) (*models.SessionInfo, error) {
	info, err := s.repo.GetSessionInfo(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if actor.Role != models.RoleAdmin && info.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "session belongs to another user")
	}
	return info, nil
}

// ListActiveSessions returns every live session.
func (s *AuthService) ListActiveSessions(ctx context.Context) ([]models.SessionInfo, error) {
	sessions, err := s.repo.ListActiveSessions(ctx, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	if sessions == nil {
		sessions = []models.SessionInfo{}
	}
	return sessions, nil
}

func (s *AuthService) openSession(ctx context.Context, userID, ip, userAgent string) (*models.RefreshToken, error) {
	value, err := generateRefreshTokenString()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}
	now := s.now()
	session := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     value,
		ExpiresAt: now.Add(s.config.RefreshTokenExpiry),
		CreatedAt: now,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.repo.CreateRefreshToken(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}
	return session, nil
}

func (s *AuthService) setPassword(ctx context.Context, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash), s.now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}
	if err := s.repo.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke sessions after password update", zap.Error(err))
	}
	return nil
}

func (s *AuthService) audit(ctx context.Context, userID, action, values, ip, userAgent string) {
	uid := userID
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &uid,
		Action:     action,
		Resource:   "auth",
		ResourceID: &uid,
		NewValues:  models.AuditJSON(values),
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *AuthService) generateAccessToken(user *models.User, sessionID string) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		UserID:    user.ID,
		Role:      user.Role,
		Email:     user.Email,
		FullName:  user.FullName,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			Audience:  s.config.Audience,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func generateRefreshTokenString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
