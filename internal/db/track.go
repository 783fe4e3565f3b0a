package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tunecrate/tunecrate/internal/models"
	"gorm.io/gorm/clause"
)

// TrackRepository handles database operations for catalog tracks
type TrackRepository struct {
	db *DB
}

// NewTrackRepository creates a new track repository
func NewTrackRepository(db *DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// GetByID retrieves a track by its UUID
func (r *TrackRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Track, error) {
	var track models.Track
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&track)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &track, nil
}

// GetByGUIDs retrieves all tracks whose item GUID is in the given set.
// Uses a single batched IN query; the resolver depends on this not being
// N individual lookups.
func (r *TrackRepository) GetByGUIDs(ctx context.Context, guids []string) ([]*models.Track, error) {
	if len(guids) == 0 {
		return nil, nil
	}
	var tracks []*models.Track
	result := r.db.WithContext(ctx).Where("guid IN ?", guids).Find(&tracks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get tracks by guids: %w", MapGormError(result.Error))
	}
	return tracks, nil
}

// GetByFeedID retrieves all tracks for a feed in feed-native order
func (r *TrackRepository) GetByFeedID(ctx context.Context, feedID uuid.UUID) ([]*models.Track, error) {
	var tracks []*models.Track
	result := r.db.WithContext(ctx).
		Where("feed_id = ?", feedID.String()).
		Order("track_order ASC").
		Find(&tracks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get tracks by feed: %w", MapGormError(result.Error))
	}
	return tracks, nil
}

// CountByFeedID returns the number of tracks belonging to a feed
func (r *TrackRepository) CountByFeedID(ctx context.Context, feedID uuid.UUID) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Track{}).Where("feed_id = ?", feedID.String()).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count tracks by feed: %w", MapGormError(result.Error))
	}
	return count, nil
}

// BulkInsert inserts tracks in one statement and returns the inserted count.
// With skipDuplicates set, rows conflicting on (feed_id, guid) are ignored
// rather than failing the batch.
func (r *TrackRepository) BulkInsert(ctx context.Context, tracks []*models.Track, skipDuplicates bool) (int64, error) {
	if len(tracks) == 0 {
		return 0, nil
	}

	query := r.db.WithContext(ctx)
	if skipDuplicates {
		query = query.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "feed_id"}, {Name: "guid"}},
			DoNothing: true,
		})
	}

	result := query.Create(&tracks)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to bulk insert tracks: %w", MapGormError(result.Error))
	}
	return result.RowsAffected, nil
}

// UpdateGUID rewrites a track's item GUID (used by feed reparse when the
// upstream feed rotated GUIDs but the track was matched heuristically)
func (r *TrackRepository) UpdateGUID(ctx context.Context, id uuid.UUID, guid string) error {
	result := r.db.WithContext(ctx).Model(&models.Track{}).Where("id = ?", id.String()).Update("guid", guid)
	if result.Error != nil {
		return fmt.Errorf("failed to update track guid: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ExistsByIDs checks which track IDs exist in the database.
// Returns a map keyed by track ID with true for IDs that exist.
func (r *TrackRepository) ExistsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	if len(ids) == 0 {
		return make(map[uuid.UUID]bool), nil
	}

	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}

	var existing []models.Track
	result := r.db.WithContext(ctx).Select("id").Where("id IN ?", idStrings).Find(&existing)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to check track existence: %w", MapGormError(result.Error))
	}

	existsMap := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		existsMap[id] = false
	}
	for i := range existing {
		existsMap[existing[i].ID] = true
	}

	return existsMap, nil
}
