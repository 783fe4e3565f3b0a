package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tunecrate/tunecrate/internal/models"
	"gorm.io/gorm/clause"
)

// FeedRepository handles database operations for catalog feeds
type FeedRepository struct {
	db *DB
}

// NewFeedRepository creates a new feed repository
func NewFeedRepository(db *DB) *FeedRepository {
	return &FeedRepository{db: db}
}

// Create inserts a new feed into the database
func (r *FeedRepository) Create(ctx context.Context, feed *models.Feed) error {
	result := r.db.WithContext(ctx).Create(feed)
	if result.Error != nil {
		return fmt.Errorf("failed to create feed: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves a feed by its UUID
func (r *FeedRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Feed, error) {
	var feed models.Feed
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&feed)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &feed, nil
}

// GetByGUID retrieves a feed by its directory GUID
func (r *FeedRepository) GetByGUID(ctx context.Context, guid string) (*models.Feed, error) {
	var feed models.Feed
	result := r.db.WithContext(ctx).Where("guid = ?", guid).First(&feed)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &feed, nil
}

// GetByGUIDs retrieves all feeds whose GUID is in the given set (single batched query)
func (r *FeedRepository) GetByGUIDs(ctx context.Context, guids []string) ([]*models.Feed, error) {
	if len(guids) == 0 {
		return nil, nil
	}
	var feeds []*models.Feed
	result := r.db.WithContext(ctx).Where("guid IN ?", guids).Find(&feeds)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get feeds by guids: %w", MapGormError(result.Error))
	}
	return feeds, nil
}

// GetByIDs retrieves all feeds whose UUID is in the given set
func (r *FeedRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Feed, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}
	var feeds []*models.Feed
	result := r.db.WithContext(ctx).Where("id IN ?", idStrings).Find(&feeds)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get feeds by ids: %w", MapGormError(result.Error))
	}
	return feeds, nil
}

// Upsert atomically creates the feed if its GUID is absent, otherwise touches
// last_fetched_at on the existing row. Safe under concurrent resolution passes
// discovering the same feed; the conflict clause makes the race benign.
func (r *FeedRepository) Upsert(ctx context.Context, feed *models.Feed) (*models.Feed, error) {
	now := time.Now().UTC()
	feed.LastFetchedAt = &now
	feed.UpdatedAt = now

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "guid"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_fetched_at": now,
			"updated_at":      now,
		}),
	}).Create(feed)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to upsert feed: %w", MapGormError(result.Error))
	}

	// Re-read by GUID so the caller gets the winning row, not the candidate
	return r.GetByGUID(ctx, feed.GUID)
}

// UpdateStatus sets a feed's status and last error message
func (r *FeedRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, lastError *string) error {
	updates := map[string]interface{}{
		"status":     status,
		"last_error": lastError,
		"updated_at": time.Now().UTC(),
	}
	result := r.db.WithContext(ctx).Model(&models.Feed{}).Where("id = ?", id.String()).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update feed status: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List retrieves feeds ordered by title with pagination
func (r *FeedRepository) List(ctx context.Context, limit, offset int) ([]*models.Feed, error) {
	var feeds []*models.Feed
	query := r.db.WithContext(ctx).Order("title ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	result := query.Find(&feeds)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", MapGormError(result.Error))
	}
	return feeds, nil
}

// Count returns the total number of feeds
func (r *FeedRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Feed{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count feeds: %w", MapGormError(result.Error))
	}
	return count, nil
}
