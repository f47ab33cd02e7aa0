package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epathshala/portal-api/internal/models"
)

func TestLayoutPreferenceUpsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLayoutPreferenceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id, layout_key) DO UPDATE")).
		WithArgs("u1", "teacherSidebarCollapsed", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	pref := &models.LayoutPreference{UserID: "u1", LayoutKey: "teacherSidebarCollapsed", Collapsed: true}
	require.NoError(t, repo.Upsert(context.Background(), pref))
	assert.False(t, pref.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLayoutPreferenceGet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLayoutPreferenceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM layout_preferences WHERE user_id = $1 AND layout_key = $2")).
		WithArgs("u1", "mainSidebarCollapsed").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "layout_key", "collapsed", "updated_at"}).
			AddRow("u1", "mainSidebarCollapsed", true, time.Now()))

	pref, err := repo.Get(context.Background(), "u1", "mainSidebarCollapsed")
	require.NoError(t, err)
	assert.True(t, pref.Collapsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLayoutPreferenceGetMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLayoutPreferenceRepository(db)

	mock.ExpectQuery("FROM layout_preferences").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "u1", "unifiedNavCollapsed")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestLayoutPreferenceListByUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLayoutPreferenceRepository(db)

	now := time.Now()
	mock.ExpectQuery("FROM layout_preferences WHERE user_id").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "layout_key", "collapsed", "updated_at"}).
			AddRow("u1", "mainSidebarCollapsed", false, now).
			AddRow("u1", "unifiedNavCollapsed", true, now))

	prefs, err := repo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, prefs, 2)
	assert.True(t, prefs[1].Collapsed)
}
