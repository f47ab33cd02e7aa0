package models

import "time"

// RefreshToken represents a persisted login session. Its ID is the session id
// carried in access token claims.
type RefreshToken struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"user_id"`
	Token      string     `db:"token" json:"token"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	LastSeenAt *time.Time `db:"last_seen_at" json:"last_seen_at,omitempty"`
	Revoked    bool       `db:"revoked" json:"revoked"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	IPAddress  string     `db:"ip_address" json:"ip_address"`
	UserAgent  string     `db:"user_agent" json:"user_agent"`
}

// Active reports whether the session can still be used at now.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// SessionInfo is a session joined with its owner, without the token secret.
type SessionInfo struct {
	SessionID  string     `db:"id" json:"session_id"`
	UserID     string     `db:"user_id" json:"user_id"`
	Email      string     `db:"email" json:"email"`
	FullName   string     `db:"full_name" json:"full_name"`
	Role       UserRole   `db:"role" json:"role"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	LastSeenAt *time.Time `db:"last_seen_at" json:"last_seen_at,omitempty"`
	Revoked    bool       `db:"revoked" json:"revoked"`
	IPAddress  string     `db:"ip_address" json:"ip_address"`
	UserAgent  string     `db:"user_agent" json:"user_agent"`
}
