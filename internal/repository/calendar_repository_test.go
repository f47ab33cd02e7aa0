package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epathshala/portal-api/internal/models"
)

func TestCalendarListFiltersByWindowAndAudience(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	from := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC)
	audiences := []string{"ALL", "STUDENT"}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM calendar_events WHERE 1=1 AND end_date >= $1 AND start_date <= $2 AND audience = ANY($3)")).
		WithArgs(from, to, pq.Array(audiences)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY start_date ASC, title ASC LIMIT $4 OFFSET $5")).
		WithArgs(from, to, pq.Array(audiences), 10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "event_type", "start_date", "end_date", "audience", "location", "created_by", "created_at", "updated_at"}).
			AddRow("e1", "Sports Day", "", "EVENT", from, from, "STUDENT", nil, "admin-1", from, from))

	events, total, err := repo.List(context.Background(), models.CalendarFilter{From: &from, To: &to, Audiences: audiences, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventTypeGeneral, events[0].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarCreateAndDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	mock.ExpectExec("INSERT INTO calendar_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM calendar_events WHERE id = $1")).WithArgs("e1").WillReturnResult(sqlmock.NewResult(0, 1))

	event := &models.CalendarEvent{Title: "Holiday", EventType: models.EventTypeHoliday, Audience: "ALL", CreatedBy: "admin-1"}
	require.NoError(t, repo.Create(context.Background(), event))
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())

	require.NoError(t, repo.Delete(context.Background(), "e1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
