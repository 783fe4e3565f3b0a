package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tunecrate/tunecrate/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlaylistRepository handles database operations for playlists and their
// materialized snapshot rows
type PlaylistRepository struct {
	db *DB
}

// NewPlaylistRepository creates a new playlist repository
func NewPlaylistRepository(db *DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// GetByID retrieves a playlist by its identifier
func (r *PlaylistRepository) GetByID(ctx context.Context, id string) (*models.Playlist, error) {
	var playlist models.Playlist
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&playlist)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &playlist, nil
}

// List retrieves all playlists ordered by title
func (r *PlaylistRepository) List(ctx context.Context) ([]*models.Playlist, error) {
	var playlists []*models.Playlist
	result := r.db.WithContext(ctx).Order("title ASC").Find(&playlists)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", MapGormError(result.Error))
	}
	return playlists, nil
}

// Upsert creates the playlist or updates its metadata if it already exists
func (r *PlaylistRepository) Upsert(ctx context.Context, playlist *models.Playlist) error {
	playlist.UpdatedAt = time.Now().UTC()
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "artwork", "source_url", "updated_at",
		}),
	}).Create(playlist)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert playlist: %w", MapGormError(result.Error))
	}
	return nil
}

// ReplaceTracks swaps a playlist's snapshot rows for the given set in one
// transaction. Rows referencing tracks that no longer exist are pruned
// before insert so the snapshot never points at deleted tracks.
func (r *PlaylistRepository) ReplaceTracks(ctx context.Context, playlistID string, rows []*models.PlaylistTrack) error {
	trackIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		trackIDs = append(trackIDs, row.TrackID)
	}

	tracks := NewTrackRepository(r.db)
	exists, err := tracks.ExistsByIDs(ctx, trackIDs)
	if err != nil {
		return fmt.Errorf("failed to replace playlist tracks: %w", err)
	}

	kept := make([]*models.PlaylistTrack, 0, len(rows))
	for _, row := range rows {
		if exists[row.TrackID] {
			kept = append(kept, row)
		}
	}

	return r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("playlist_id = ?", playlistID).Delete(&models.PlaylistTrack{}).Error; err != nil {
			return fmt.Errorf("failed to clear playlist snapshot: %w", MapGormError(err))
		}
		if len(kept) == 0 {
			return nil
		}
		if err := tx.Create(&kept).Error; err != nil {
			return fmt.Errorf("failed to insert playlist snapshot: %w", MapGormError(err))
		}
		return nil
	})
}

// GetTracks retrieves a playlist's snapshot rows ordered by position with the
// referenced tracks attached
func (r *PlaylistRepository) GetTracks(ctx context.Context, playlistID string) ([]*models.PlaylistTrack, error) {
	var rows []*models.PlaylistTrack
	result := r.db.WithContext(ctx).
		Where("playlist_id = ?", playlistID).
		Order("position ASC").
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get playlist tracks: %w", MapGormError(result.Error))
	}
	if len(rows) == 0 {
		return rows, nil
	}

	idStrings := make([]string, 0, len(rows))
	for _, row := range rows {
		idStrings = append(idStrings, row.TrackID.String())
	}

	var tracks []*models.Track
	result = r.db.WithContext(ctx).Where("id IN ?", idStrings).Find(&tracks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get snapshot tracks: %w", MapGormError(result.Error))
	}

	byID := make(map[uuid.UUID]*models.Track, len(tracks))
	for i := range tracks {
		byID[tracks[i].ID] = tracks[i]
	}
	for _, row := range rows {
		row.Track = byID[row.TrackID]
	}

	return rows, nil
}
