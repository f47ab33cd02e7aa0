package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/epathshala/portal-api/internal/models"
)

// LayoutPreferenceRepository persists per-user sidebar collapse flags.
type LayoutPreferenceRepository struct {
	db *sqlx.DB
}

// NewLayoutPreferenceRepository constructs the repository.
func NewLayoutPreferenceRepository(db *sqlx.DB) *LayoutPreferenceRepository {
	return &LayoutPreferenceRepository{db: db}
}

// Get returns the stored flag for one layout key.
func (r *LayoutPreferenceRepository) Get(ctx context.Context, userID, layoutKey string) (*models.LayoutPreference, error) {
	const query = `SELECT user_id, layout_key, collapsed, updated_at FROM layout_preferences WHERE user_id = $1 AND layout_key = $2`
	var pref models.LayoutPreference
	if err := r.db.GetContext(ctx, &pref, query, userID, layoutKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get layout preference: %w", err)
	}
	return &pref, nil
}

// ListByUser returns every stored flag for the user.
func (r *LayoutPreferenceRepository) ListByUser(ctx context.Context, userID string) ([]models.LayoutPreference, error) {
	const query = `SELECT user_id, layout_key, collapsed, updated_at FROM layout_preferences WHERE user_id = $1 ORDER BY layout_key`
	prefs := []models.LayoutPreference{}
	if err := r.db.SelectContext(ctx, &prefs, query, userID); err != nil {
		return nil, fmt.Errorf("list layout preferences: %w", err)
	}
	return prefs, nil
}

// Upsert creates or replaces the flag for (user, layout key).
func (r *LayoutPreferenceRepository) Upsert(ctx context.Context, pref *models.LayoutPreference) error {
	pref.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO layout_preferences (user_id, layout_key, collapsed, updated_at)
		VALUES (:user_id, :layout_key, :collapsed, :updated_at)
		ON CONFLICT (user_id, layout_key) DO UPDATE
		SET collapsed = EXCLUDED.collapsed,
		    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, pref); err != nil {
		return fmt.Errorf("upsert layout preference: %w", err)
	}
	return nil
}
