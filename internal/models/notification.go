package models

import "time"

// NotificationType classifies the origin of a notification.
type NotificationType string

const (
	NotificationTypeAnnouncement NotificationType = "ANNOUNCEMENT"
	NotificationTypeForumReply   NotificationType = "FORUM_REPLY"
	NotificationTypeChatMessage  NotificationType = "CHAT_MESSAGE"
	NotificationTypeSystem       NotificationType = "SYSTEM"
)

// NotificationPriority orders notifications in the UI.
type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "LOW"
	NotificationPriorityMedium NotificationPriority = "MEDIUM"
	NotificationPriorityHigh   NotificationPriority = "HIGH"
	NotificationPriorityUrgent NotificationPriority = "URGENT"
)

// TargetRoleAll addresses every role.
const TargetRoleAll = "ALL"

// Notification represents a row in the notifications table.
type Notification struct {
	ID          string               `db:"id" json:"id"`
	Title       string               `db:"title" json:"title"`
	Content     string               `db:"content" json:"content"`
	Type        NotificationType     `db:"type" json:"type"`
	Priority    NotificationPriority `db:"priority" json:"priority"`
	SenderID    *string              `db:"sender_id" json:"sender_id,omitempty"`
	SenderName  *string              `db:"sender_name" json:"sender_name,omitempty"`
	RecipientID *string              `db:"recipient_id" json:"recipient_id,omitempty"`
	IsRead      bool                 `db:"is_read" json:"is_read"`
	IsGlobal    bool                 `db:"is_global" json:"is_global"`
	TargetRole  string               `db:"target_role" json:"target_role"`
	ActionURL   *string              `db:"action_url" json:"action_url,omitempty"`
	ActionText  *string              `db:"action_text" json:"action_text,omitempty"`
	CreatedAt   time.Time            `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time            `db:"expires_at" json:"expires_at"`
}

// VisibleTo reports whether userID may read or acknowledge the notification.
func (n *Notification) VisibleTo(userID string) bool {
	if n.IsGlobal {
		return true
	}
	return n.RecipientID != nil && *n.RecipientID == userID
}

// NotificationInput describes a notification to create for one recipient.
type NotificationInput struct {
	Title       string               `json:"title" validate:"required,max=200"`
	Content     string               `json:"content" validate:"required"`
	Type        NotificationType     `json:"type" validate:"required,oneof=ANNOUNCEMENT FORUM_REPLY CHAT_MESSAGE SYSTEM"`
	Priority    NotificationPriority `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	SenderID    *string              `json:"sender_id"`
	RecipientID string               `json:"recipient_id" validate:"required"`
	ActionURL   *string              `json:"action_url"`
	ActionText  *string              `json:"action_text"`
}

// AnnouncementRequest is the payload for a global announcement.
type AnnouncementRequest struct {
	Title      string `json:"title" validate:"required,max=200"`
	Content    string `json:"content" validate:"required"`
	TargetRole string `json:"target_role" validate:"omitempty,oneof=ALL ADMIN STUDENT TEACHER PARENT"`
}

// NotificationList wraps a list response the way the portal client reads it.
type NotificationList struct {
	Content []Notification `json:"content"`
}

// UnreadCount is the badge payload.
type UnreadCount struct {
	Count int64 `json:"count"`
}

// NotificationSummary is the list and badge fetched together.
type NotificationSummary struct {
	Content []Notification `json:"content"`
	Count   int64          `json:"count"`
}

// TopicEvent is a payload broadcast on a named topic such as assignment or
// leaveApproval.
type TopicEvent struct {
	Type      string                 `json:"type"`
	Title     string                 `json:"title,omitempty"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	SenderID  string                 `json:"sender_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
