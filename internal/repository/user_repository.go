package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/epathshala/portal-api/internal/models"
)

const userColumns = `id, email, password_hash, full_name, role, active, last_login, created_at, updated_at`

const sessionColumns = `id, user_id, token, expires_at, created_at, last_seen_at, revoked, revoked_at, ip_address, user_agent`

const sessionInfoSelect = `SELECT rt.id, rt.user_id, u.email, u.full_name, u.role, rt.created_at, rt.expires_at, rt.last_seen_at, rt.revoked, rt.ip_address, rt.user_agent
	FROM refresh_tokens rt JOIN users u ON u.id = rt.user_id`

// UserRepository provides database access for users, their sessions, password
// resets and the audit trail.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// List returns a page of users matching filter together with the total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if len(filter.Roles) > 0 {
		roles := make([]string, len(filter.Roles))
		for i, role := range filter.Roles {
			roles[i] = string(role)
		}
		args = append(args, pq.Array(roles))
		conditions = append(conditions, fmt.Sprintf("role = ANY($%d)", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(full_name) LIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	sortBy := filter.SortBy
	switch sortBy {
	case "email", "full_name", "role", "created_at", "updated_at":
	default:
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" {
		sortOrder = "DESC"
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		userColumns, where, sortBy, sortOrder, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at) VALUES (:id, :email, :password_hash, :full_name, :role, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update stores the mutable profile fields of a user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET full_name = :full_name, role = :role, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// Deactivate marks the user inactive. Rows are never removed so sessions and
// audit entries keep their owner.
func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE users SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	return nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// CreateRefreshToken persists a session.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (` + sessionColumns + `) VALUES (:id, :user_id, :token, :expires_at, :created_at, :last_seen_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a session by its token string.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT ` + sessionColumns + ` FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// FindSessionByID returns a session by id.
func (r *UserRepository) FindSessionByID(ctx context.Context, id string) (*models.RefreshToken, error) {
	const query = `SELECT ` + sessionColumns + ` FROM refresh_tokens WHERE id = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &rt, nil
}

// GetSessionInfo returns a session joined with its owner.
func (r *UserRepository) GetSessionInfo(ctx context.Context, id string) (*models.SessionInfo, error) {
	const query = sessionInfoSelect + ` WHERE rt.id = $1 LIMIT 1`
	var info models.SessionInfo
	if err := r.db.GetContext(ctx, &info, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get session info: %w", err)
	}
	return &info, nil
}

// ListActiveSessions returns non-revoked, unexpired sessions newest first.
func (r *UserRepository) ListActiveSessions(ctx context.Context, now time.Time) ([]models.SessionInfo, error) {
	const query = sessionInfoSelect + ` WHERE rt.revoked = FALSE AND rt.expires_at > $1 ORDER BY rt.created_at DESC`
	var sessions []models.SessionInfo
	if err := r.db.SelectContext(ctx, &sessions, query, now); err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

// TouchSession records activity on a session.
func (r *UserRepository) TouchSession(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE refresh_tokens SET last_seen_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// RevokeRefreshToken marks a session as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes all sessions for a user.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// SavePasswordReset stores (or replaces) the pending OTP for a user.
func (r *UserRepository) SavePasswordReset(ctx context.Context, reset *models.PasswordReset) error {
	const query = `INSERT INTO password_resets (user_id, otp_hash, expires_at, created_at)
		VALUES (:user_id, :otp_hash, :expires_at, :created_at)
		ON CONFLICT (user_id) DO UPDATE
		SET otp_hash = EXCLUDED.otp_hash,
		    expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at`
	if _, err := r.db.NamedExecContext(ctx, query, reset); err != nil {
		return fmt.Errorf("save password reset: %w", err)
	}
	return nil
}

// FindPasswordReset returns the pending OTP for a user.
func (r *UserRepository) FindPasswordReset(ctx context.Context, userID string) (*models.PasswordReset, error) {
	const query = `SELECT user_id, otp_hash, expires_at, created_at FROM password_resets WHERE user_id = $1`
	var reset models.PasswordReset
	if err := r.db.GetContext(ctx, &reset, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find password reset: %w", err)
	}
	return &reset, nil
}

// DeletePasswordReset consumes the pending OTP.
func (r *UserRepository) DeletePasswordReset(ctx context.Context, userID string) error {
	const query = `DELETE FROM password_resets WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete password reset: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
