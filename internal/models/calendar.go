package models

import "time"

// EventType classifies an academic calendar entry.
type EventType string

const (
	EventTypeHoliday EventType = "HOLIDAY"
	EventTypeExam    EventType = "EXAM"
	EventTypeMeeting EventType = "MEETING"
	EventTypeGeneral EventType = "EVENT"
)

// CalendarEvent is an academic event shown on the public calendar and on
// role dashboards. Audience is ALL or a single role.
type CalendarEvent struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	EventType   EventType `db:"event_type" json:"event_type"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	EndDate     time.Time `db:"end_date" json:"end_date"`
	Audience    string    `db:"audience" json:"audience"`
	Location    *string   `db:"location" json:"location,omitempty"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CalendarFilter narrows down events.
type CalendarFilter struct {
	From      *time.Time
	To        *time.Time
	Audiences []string
	Page      int
	PageSize  int
}
