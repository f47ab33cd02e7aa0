package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLoginFailed    = "LOGIN_FAILED"
	AuditActionLogout         = "LOGOUT"
	AuditActionRefresh        = "TOKEN_REFRESH"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionPasswordReset  = "PASSWORD_RESET"
	AuditActionAnnouncement   = "ANNOUNCEMENT_CREATE"
	AuditActionSessionExport  = "SESSION_EXPORT"
	AuditActionLayoutUpdate   = "LAYOUT_UPDATE"
	AuditActionBroadcast      = "TOPIC_BROADCAST"
	AuditActionUserCreate     = "USER_CREATE"
	AuditActionUserUpdate     = "USER_UPDATE"
	AuditActionUserDeactivate = "USER_DEACTIVATE"
	AuditActionEventWrite     = "EVENT_WRITE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string             `db:"id" json:"id"`
	UserID     *string            `db:"user_id" json:"user_id,omitempty"`
	Action     string             `db:"action" json:"action"`
	Resource   string             `db:"resource" json:"resource"`
	ResourceID *string            `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  types.NullJSONText `db:"old_values" json:"old_values,omitempty"`
	NewValues  types.NullJSONText `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string             `db:"ip_address" json:"ip_address"`
	UserAgent  string             `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
}

// AuditJSON wraps a raw JSON document for the audit value columns.
func AuditJSON(raw string) types.NullJSONText {
	return types.NullJSONText{JSONText: types.JSONText(raw), Valid: raw != ""}
}
