package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/epathshala/portal-api/internal/models"
)

const notificationSelect = `SELECT n.id, n.title, n.content, n.type, n.priority, n.sender_id, u.full_name AS sender_name, n.recipient_id,
	n.is_read, n.is_global, n.target_role, n.action_url, n.action_text, n.created_at, n.expires_at
	FROM notifications n LEFT JOIN users u ON u.id = n.sender_id`

// NotificationRepository persists notifications and announcements.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// ListForUser returns unexpired notifications addressed to the user, plus
// global ones targeted at ALL or the user's role, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, role models.UserRole, now time.Time, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := notificationSelect + ` WHERE (n.recipient_id = $1 OR (n.is_global = TRUE AND n.target_role = ANY($2)))
	AND n.expires_at > $3 ORDER BY n.created_at DESC LIMIT ` + fmt.Sprint(limit)
	targets := []string{models.TargetRoleAll, string(role)}
	items := []models.Notification{}
	if err := r.db.SelectContext(ctx, &items, query, userID, pq.Array(targets), now); err != nil {
		return nil, fmt.Errorf("list notifications for user: %w", err)
	}
	return items, nil
}

// CountUnread counts the user's own unread notifications.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string, now time.Time) (int64, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE AND expires_at > $2`
	var count int64
	if err := r.db.GetContext(ctx, &count, query, userID, now); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// GetByID returns a notification by id.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	query := notificationSelect + ` WHERE n.id = $1`
	var n models.Notification
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return &n, nil
}

// MarkRead flags a single notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	const query = `UPDATE notifications SET is_read = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead flags every unread notification of the recipient and returns
// how many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	const query = `UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND is_read = FALSE`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return affected, nil
}

// Create inserts a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.TargetRole == "" {
		n.TargetRole = models.TargetRoleAll
	}
	const query = `INSERT INTO notifications (id, title, content, type, priority, sender_id, recipient_id, is_read, is_global, target_role, action_url, action_text, created_at, expires_at)
		VALUES (:id, :title, :content, :type, :priority, :sender_id, :recipient_id, :is_read, :is_global, :target_role, :action_url, :action_text, :created_at, :expires_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListGlobal returns unexpired global announcements newest first.
func (r *NotificationRepository) ListGlobal(ctx context.Context, now time.Time) ([]models.Notification, error) {
	query := notificationSelect + ` WHERE n.is_global = TRUE AND n.expires_at > $1 ORDER BY n.created_at DESC`
	items := []models.Notification{}
	if err := r.db.SelectContext(ctx, &items, query, now); err != nil {
		return nil, fmt.Errorf("list global notifications: %w", err)
	}
	return items, nil
}
