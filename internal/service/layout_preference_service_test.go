package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epathshala/portal-api/internal/models"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
)

type memoryLayoutRepo struct {
	prefs  map[string]models.LayoutPreference
	gets   int
	getErr error
}

func newMemoryLayoutRepo() *memoryLayoutRepo {
	return &memoryLayoutRepo{prefs: map[string]models.LayoutPreference{}}
}

func (m *memoryLayoutRepo) Get(_ context.Context, userID, layoutKey string) (*models.LayoutPreference, error) {
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.prefs[userID+"/"+layoutKey]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (m *memoryLayoutRepo) ListByUser(_ context.Context, userID string) ([]models.LayoutPreference, error) {
	var out []models.LayoutPreference
	for _, p := range m.prefs {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryLayoutRepo) Upsert(_ context.Context, pref *models.LayoutPreference) error {
	pref.UpdatedAt = time.Now()
	m.prefs[pref.UserID+"/"+pref.LayoutKey] = *pref
	return nil
}

func TestLayoutPreferenceDefaultsToExpanded(t *testing.T) {
	svc := NewLayoutPreferenceService(newMemoryLayoutRepo(), nil, time.Hour, nil)

	pref, err := svc.Get(context.Background(), "u1", models.LayoutUnified)
	require.NoError(t, err)
	assert.False(t, pref.Collapsed)
	assert.Equal(t, "unifiedNavCollapsed", pref.LayoutKey)
}

func TestLayoutPreferenceSurvivesReload(t *testing.T) {
	repo := newMemoryLayoutRepo()
	ctx := context.Background()

	first := NewLayoutPreferenceService(repo, nil, time.Hour, nil)
	_, err := first.Set(ctx, "u1", models.LayoutTeacher, true)
	require.NoError(t, err)

	reloaded := NewLayoutPreferenceService(repo, nil, time.Hour, nil)
	pref, err := reloaded.Get(ctx, "u1", models.LayoutTeacher)
	require.NoError(t, err)
	assert.True(t, pref.Collapsed)
	assert.Contains(t, repo.prefs, "u1/teacherSidebarCollapsed")

	other, err := reloaded.Get(ctx, "u1", models.LayoutMain)
	require.NoError(t, err)
	assert.False(t, other.Collapsed)
}

func TestLayoutPreferenceServedFromCache(t *testing.T) {
	repo := newMemoryLayoutRepo()
	cacheSvc := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	svc := NewLayoutPreferenceService(repo, cacheSvc, time.Hour, nil)
	ctx := context.Background()

	_, err := svc.Set(ctx, "u1", models.LayoutMain, true)
	require.NoError(t, err)

	pref, err := svc.Get(ctx, "u1", models.LayoutMain)
	require.NoError(t, err)
	assert.True(t, pref.Collapsed)
	assert.Zero(t, repo.gets)
}

func TestLayoutPreferenceUnknownVariant(t *testing.T) {
	svc := NewLayoutPreferenceService(newMemoryLayoutRepo(), nil, time.Hour, nil)

	_, err := svc.Set(context.Background(), "u1", models.LayoutVariant("parent"), true)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestLayoutPreferenceRepoFailure(t *testing.T) {
	repo := newMemoryLayoutRepo()
	repo.getErr = errors.New("db down")
	svc := NewLayoutPreferenceService(repo, nil, time.Hour, nil)

	_, err := svc.Get(context.Background(), "u1", models.LayoutMain)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestLayoutPreferenceGetAll(t *testing.T) {
	repo := newMemoryLayoutRepo()
	svc := NewLayoutPreferenceService(repo, nil, time.Hour, nil)
	ctx := context.Background()
	_, err := svc.Set(ctx, "u1", models.LayoutUnified, true)
	require.NoError(t, err)

	all, err := svc.GetAll(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{
		"unifiedNavCollapsed":     true,
		"mainSidebarCollapsed":    false,
		"teacherSidebarCollapsed": false,
	}, all)
}
