package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/epathshala/portal-api/internal/models"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail         *models.User
	userByID            *models.User
	findByEmailErr      error
	findByIDErr         error
	refreshTokens       map[string]*models.RefreshToken
	refreshTokenErr     error
	createRefreshErr    error
	revokeRefreshErr    error
	revokeUserTokensErr error
	updatePasswordErr   error
	auditLogs           []*models.AuditLog
	lastLoginUpdated    bool
	revokedAllFor       []string
	resets              map[string]*models.PasswordReset
	sessions            []models.SessionInfo
	touched             []string
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	if m.userByEmail != nil && m.userByEmail.ID == id {
		m.userByEmail.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAllFor = append(m.revokedAllFor, userID)
	return m.revokeUserTokensErr
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if m.refreshTokenErr != nil {
		return nil, m.refreshTokenErr
	}
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) FindSessionByID(ctx context.Context, id string) (*models.RefreshToken, error) {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			return token, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) GetSessionInfo(ctx context.Context, id string) (*models.SessionInfo, error) {
	for i := range m.sessions {
		if m.sessions[i].SessionID == id {
			return &m.sessions[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) ListActiveSessions(ctx context.Context, now time.Time) ([]models.SessionInfo, error) {
	return m.sessions, nil
}

func (m *mockAuthRepo) TouchSession(ctx context.Context, id string, ts time.Time) error {
	m.touched = append(m.touched, id)
	return nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	if m.revokeRefreshErr != nil {
		return m.revokeRefreshErr
	}
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) SavePasswordReset(ctx context.Context, reset *models.PasswordReset) error {
	if m.resets == nil {
		m.resets = map[string]*models.PasswordReset{}
	}
	m.resets[reset.UserID] = reset
	return nil
}

func (m *mockAuthRepo) FindPasswordReset(ctx context.Context, userID string) (*models.PasswordReset, error) {
	reset, ok := m.resets[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return reset, nil
}

func (m *mockAuthRepo) DeletePasswordReset(ctx context.Context, userID string) error {
	delete(m.resets, userID)
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type capturingOTPSender struct {
	code string
}

func (c *capturingOTPSender) SendOTP(_ context.Context, _ *models.User, code string, _ time.Time) error {
	c.code = code
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: 24 * time.Hour}
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthServiceLoginSuccessRedirectsToRoleHome(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "teacher@school.test", FullName: "Ms Rao", PasswordHash: hashed(t, "password"), Active: true, Role: models.RoleTeacher}}
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "teacher@school.test", Password: "password", Role: "teacher"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "/teacher", res.Redirect)
	assert.Equal(t, models.RoleTeacher, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)
	require.Len(t, repo.refreshTokens, 1)

	claims, err := svc.ValidateToken(context.Background(), res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.SessionID, claims.SessionID)
	assert.Equal(t, "Ms Rao", claims.FullName)
}

func TestAuthServiceLoginRoleMismatch(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "s@school.test", PasswordHash: hashed(t, "password"), Active: true, Role: models.RoleStudent}}
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "s@school.test", Password: "password", Role: "ADMIN"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
	assert.Equal(t, "invalid role for this account", appErr.Message)
	assert.Empty(t, repo.refreshTokens)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLoginFailed, repo.auditLogs[0].Action)
}

func TestAuthServiceLoginRejectsUnknownRole(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "s@school.test", Password: "password", Role: "JANITOR"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@school.test", Password: "password", Role: "STUDENT"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@school.test", PasswordHash: hashed(t, "password"), Active: false, Role: models.RoleParent}}
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@school.test", Password: "password", Role: "PARENT"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: make(map[string]*models.RefreshToken)}
	user := &models.User{ID: "u1", Email: "user@school.test", PasswordHash: "hash", Active: true, Role: models.RoleAdmin}
	repo.userByEmail = user
	token := &models.RefreshToken{ID: "rt1", UserID: user.ID, Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	repo.refreshTokens[token.Token] = token

	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.NotEqual(t, "rt1", res.SessionID)
	assert.True(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceRefreshRevokedToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"token": {ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour), Revoked: true},
	}}
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	assert.ErrorIs(t, err, appErrors.ErrSessionExpired)
}

func TestAuthServiceLogoutBySessionClaim(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"token": {ID: "s1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	err := svc.Logout(context.Background(), &models.JWTClaims{UserID: "u1", SessionID: "s1"}, "", "10.0.0.1", "test")
	require.NoError(t, err)
	assert.True(t, repo.refreshTokens["token"].Revoked)
	assert.Equal(t, models.AuditActionLogout, repo.auditLogs[len(repo.auditLogs)-1].Action)
}

func TestAuthServiceLogoutForeignSession(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"token": {ID: "s1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	err := svc.Logout(context.Background(), &models.JWTClaims{UserID: "u2"}, "token", "", "")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.False(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash := hashed(t, "old")
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", PasswordHash: oldHash, Active: true}}
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "old", NewPassword: "newpassword"})
	require.NoError(t, err)
	assert.NotEqual(t, oldHash, repo.userByEmail.PasswordHash)
	assert.Equal(t, []string{"u1"}, repo.revokedAllFor)
}

func TestAuthServiceForgotAndVerifyOTP(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "p@school.test", PasswordHash: hashed(t, "old"), Active: true, Role: models.RoleParent}}
	sender := &capturingOTPSender{}
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig()).WithOTPSender(sender)
	ctx := context.Background()

	require.NoError(t, svc.ForgotPassword(ctx, models.ForgotPasswordRequest{Email: "p@school.test"}))
	require.Len(t, sender.code, 6)
	require.Contains(t, repo.resets, "u1")
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), repo.resets["u1"].ExpiresAt, 5*time.Second)

	wrong := "000000"
	if sender.code == wrong {
		wrong = "111111"
	}
	err := svc.VerifyOTP(ctx, models.VerifyOTPRequest{Email: "p@school.test", OTP: wrong, NewPassword: "brand-new"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidOTP)

	require.NoError(t, svc.VerifyOTP(ctx, models.VerifyOTPRequest{Email: "p@school.test", OTP: sender.code, NewPassword: "brand-new"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.userByEmail.PasswordHash), []byte("brand-new")))
	assert.NotContains(t, repo.resets, "u1")
	assert.Equal(t, []string{"u1"}, repo.revokedAllFor)
}

func TestAuthServiceVerifyExpiredOTP(t *testing.T) {
	repo := &mockAuthRepo{
		userByEmail: &models.User{ID: "u1", Email: "p@school.test", Active: true},
		resets:      map[string]*models.PasswordReset{"u1": {UserID: "u1", OTPHash: hashed(t, "123456"), ExpiresAt: time.Now().Add(-time.Minute)}},
	}
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	err := svc.VerifyOTP(context.Background(), models.VerifyOTPRequest{Email: "p@school.test", OTP: "123456", NewPassword: "brand-new"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidOTP)
	assert.NotContains(t, repo.resets, "u1")
}

func TestAuthServiceForgotUnknownEmailIsSilent(t *testing.T) {
	sender := &capturingOTPSender{}
	svc := NewAuthService(&mockAuthRepo{}, nil, zap.NewNop(), testAuthConfig()).WithOTPSender(sender)

	require.NoError(t, svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "ghost@school.test"}))
	assert.Empty(t, sender.code)
}

func TestValidateTokenRejectsRevokedSession(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"token": {ID: "s1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	cfg := testAuthConfig()
	cfg.CheckSession = true
	svc := NewAuthService(repo, nil, zap.NewNop(), cfg)

	token, _, err := svc.generateAccessToken(&models.User{ID: "u1", Role: models.RoleAdmin}, "s1")
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, repo.touched)

	repo.refreshTokens["token"].Revoked = true
	_, err = svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, appErrors.ErrSessionExpired)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, nil, zap.NewNop(), testAuthConfig())
	other := NewAuthService(&mockAuthRepo{}, nil, zap.NewNop(), AuthConfig{AccessTokenSecret: "other", AccessTokenExpiry: time.Hour})

	token, _, err := other.generateAccessToken(&models.User{ID: "u1"}, "")
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestTokenStatus(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, nil, zap.NewNop(), testAuthConfig())
	now := time.Now()
	claims := func(left time.Duration) *models.JWTClaims {
		return &models.JWTClaims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(left)),
		}}
	}

	fresh := svc.TokenStatus(claims(time.Hour), now)
	assert.False(t, fresh.ExpiringSoon)
	assert.False(t, fresh.Expired)

	soon := svc.TokenStatus(claims(5*time.Minute), now)
	assert.True(t, soon.ExpiringSoon)
	assert.InDelta(t, 300, soon.RemainingSeconds, 1)

	gone := svc.TokenStatus(claims(-time.Minute), now)
	assert.True(t, gone.Expired)
	assert.Zero(t, gone.RemainingSeconds)
}

func TestAuthServiceStatus(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, nil, zap.NewNop(), testAuthConfig())
	status := svc.Status()
	assert.Equal(t, "OK", status.Status)
	assert.Equal(t, "Authentication service is running", status.Message)
	assert.NotZero(t, status.Timestamp)
}

func TestGetSessionOwnership(t *testing.T) {
	repo := &mockAuthRepo{sessions: []models.SessionInfo{{SessionID: "s1", UserID: "u1"}}}
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())
	ctx := context.Background()

	_, err := svc.GetSession(ctx, &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}, "s1")
	assert.NoError(t, err)

	_, err = svc.GetSession(ctx, &models.JWTClaims{UserID: "u2", Role: models.RoleStudent}, "s1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.GetSession(ctx, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}, "s1")
	assert.NoError(t, err)

	_, err = svc.GetSession(ctx, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}, "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestListActiveSessionsNeverNil(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, nil, zap.NewNop(), testAuthConfig())
	sessions, err := svc.ListActiveSessions(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, sessions)
}
