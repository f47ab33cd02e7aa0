package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/epathshala/portal-api/internal/models"
	"github.com/epathshala/portal-api/pkg/cache"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
)

type layoutPreferenceRepository interface {
	Get(ctx context.Context, userID, layoutKey string) (*models.LayoutPreference, error)
	ListByUser(ctx context.Context, userID string) ([]models.LayoutPreference, error)
	Upsert(ctx context.Context, pref *models.LayoutPreference) error
}

// LayoutPreferenceService remembers whether each layout's sidebar is
// collapsed, per user. Missing preferences read as expanded.
type LayoutPreferenceService struct {
	repo   layoutPreferenceRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewLayoutPreferenceService builds the service. cache may be nil.
func NewLayoutPreferenceService(repo layoutPreferenceRepository, cacheSvc *CacheService, ttl time.Duration, logger *zap.Logger) *LayoutPreferenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LayoutPreferenceService{repo: repo, cache: cacheSvc, ttl: ttl, logger: logger}
}

func layoutCacheKey(userID, layoutKey string) string {
	return cache.Key("layout", userID, layoutKey)
}

// Get returns the stored flag for the variant.
func (s *LayoutPreferenceService) Get(ctx context.Context, userID string, variant models.LayoutVariant) (*models.LayoutPreference, error) {
	key := variant.StorageKey()
	if key == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown layout variant")
	}

	var cached models.LayoutPreference
	if s.cache.Get(ctx, layoutCacheKey(userID, key), &cached) {
		return &cached, nil
	}

	pref, err := s.repo.Get(ctx, userID, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.LayoutPreference{UserID: userID, LayoutKey: key}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load layout preference")
	}
	s.cache.Set(ctx, layoutCacheKey(userID, key), pref, s.ttl)
	return pref, nil
}

// Set stores the flag and refreshes the cached copy.
func (s *LayoutPreferenceService) Set(ctx context.Context, userID string, variant models.LayoutVariant, collapsed bool) (*models.LayoutPreference, error) {
	key := variant.StorageKey()
	if key == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown layout variant")
	}

	pref := &models.LayoutPreference{UserID: userID, LayoutKey: key, Collapsed: collapsed}
	if err := s.repo.Upsert(ctx, pref); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save layout preference")
	}
	s.cache.Set(ctx, layoutCacheKey(userID, key), pref, s.ttl)
	s.logger.Debug("layout preference saved", zap.String("user_id", userID), zap.String("layout_key", key), zap.Bool("collapsed", collapsed))
	return pref, nil
}

// GetAll returns storage key -> collapsed for every variant.
func (s *LayoutPreferenceService) GetAll(ctx context.Context, userID string) (map[string]bool, error) {
	out := make(map[string]bool, len(models.AllLayoutVariants))
	for _, v := range models.AllLayoutVariants {
		out[v.StorageKey()] = false
	}

	prefs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load layout preferences")
	}
	for _, p := range prefs {
		if _, known := out[p.LayoutKey]; known {
			out[p.LayoutKey] = p.Collapsed
		}
	}
	return out, nil
}
