package store

import (
	"context"
	"fmt"

	"cartsaver/internal/models"
)

// InsertActivity persists one audit entry. The id is the event's uuid, so
// a redelivered activity event is deduplicated on the primary key.
func (s *Store) InsertActivity(ctx context.Context, activity *models.Activity) error {
	if activity.Severity == "" {
		activity.Severity = models.SeveritySuccess
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (id, shop, type, title, description, metadata, severity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		activity.ID, NormalizeShopDomain(activity.Shop), activity.Type,
		activity.Title, activity.Description, activity.Metadata,
		activity.Severity, activity.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// ListActivities retrieves a page of recent activities for a shop
func (s *Store) ListActivities(ctx context.Context, shop string, limit, offset int) ([]models.Activity, error) {
	var activities []models.Activity
	err := s.db.SelectContext(ctx, &activities, `
		SELECT * FROM activities
		WHERE shop = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		NormalizeShopDomain(shop), limit, offset)
	return activities, err
}
