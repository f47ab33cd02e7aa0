package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/epathshala/portal-api/internal/models"
)

const calendarColumns = `id, title, description, event_type, start_date, end_date, audience, location, created_by, created_at, updated_at`

// CalendarRepository persists academic events.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs a calendar repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// List returns events overlapping the requested window, earliest first.
func (r *CalendarRepository) List(ctx context.Context, filter models.CalendarFilter) ([]models.CalendarEvent, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("end_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("start_date <= $%d", len(args)))
	}
	if len(filter.Audiences) > 0 {
		args = append(args, pq.Array(filter.Audiences))
		where = append(where, fmt.Sprintf("audience = ANY($%d)", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM calendar_events WHERE "+whereClause, args...); err != nil {
		return nil, 0, fmt.Errorf("count calendar events: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf("SELECT %s FROM calendar_events WHERE %s ORDER BY start_date ASC, title ASC LIMIT $%d OFFSET $%d",
		calendarColumns, whereClause, len(args)-1, len(args))

	var events []models.CalendarEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list calendar events: %w", err)
	}
	return events, total, nil
}

// GetByID fetches a calendar event.
func (r *CalendarRepository) GetByID(ctx context.Context, id string) (*models.CalendarEvent, error) {
	var event models.CalendarEvent
	if err := r.db.GetContext(ctx, &event, "SELECT "+calendarColumns+" FROM calendar_events WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &event, nil
}

// Create inserts a calendar event.
func (r *CalendarRepository) Create(ctx context.Context, event *models.CalendarEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	const query = `INSERT INTO calendar_events (id, title, description, event_type, start_date, end_date, audience, location, created_by, created_at, updated_at)
VALUES (:id, :title, :description, :event_type, :start_date, :end_date, :audience, :location, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create calendar event: %w", err)
	}
	return nil
}

// Update modifies an event.
func (r *CalendarRepository) Update(ctx context.Context, event *models.CalendarEvent) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE calendar_events SET title = :title, description = :description, event_type = :event_type, start_date = :start_date,
end_date = :end_date, audience = :audience, location = :location, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("update calendar event: %w", err)
	}
	return nil
}

// Delete removes an event.
func (r *CalendarRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM calendar_events WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}
