package models

import (
	"time"

	"github.com/google/uuid"
)

// Playlist represents a curated remote playlist registered in the catalog.
// SourceURL points at the remote XML document that references tracks by
// (feedGuid, itemGuid) pairs.
type Playlist struct {
	ID          string    `json:"id" gorm:"type:text;primaryKey;column:id" validate:"required"`
	Title       string    `json:"title" gorm:"type:text;not null;column:title"`
	Description *string   `json:"description,omitempty" gorm:"type:text;column:description"`
	Artwork     *string   `json:"artwork,omitempty" gorm:"type:text;column:artwork"`
	SourceURL   string    `json:"source_url" gorm:"type:text;not null;column:source_url" validate:"required"`
	CreatedAt   time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

// PlaylistTrack is one row of a materialized playlist snapshot: a resolved
// track reference pinned to a position. Written only on explicit refresh.
type PlaylistTrack struct {
	ID           uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	PlaylistID   string    `json:"playlist_id" gorm:"type:text;not null;index;column:playlist_id" validate:"required"`
	TrackID      uuid.UUID `json:"track_id" gorm:"type:text;not null;column:track_id" validate:"required"`
	Position     int       `json:"position" gorm:"type:integer;not null;column:position" validate:"gte=0"`
	EpisodeID    *string   `json:"episode_id,omitempty" gorm:"type:text;column:episode_id"`
	EpisodeTitle *string   `json:"episode_title,omitempty" gorm:"type:text;column:episode_title"`
	CreatedAt    time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`

	// Populated by joins, not stored in database
	Track *Track `json:"track,omitempty" gorm:"-"`
}

// NewPlaylistTrack creates a new snapshot row with generated UUID and timestamp
func NewPlaylistTrack(playlistID string, trackID uuid.UUID, position int, episodeID *string) *PlaylistTrack {
	return &PlaylistTrack{
		ID:         uuid.New(),
		PlaylistID: playlistID,
		TrackID:    trackID,
		Position:   position,
		EpisodeID:  episodeID,
		CreatedAt:  time.Now().UTC(),
	}
}
