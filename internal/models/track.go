package models

import (
	"time"

	"github.com/google/uuid"
)

// Track represents a playable track belonging to exactly one feed.
// Uniquely identified by (feed_id, guid); track_order preserves the
// feed-native document ordering.
type Track struct {
	ID             uuid.UUID  `json:"id" gorm:"type:text;primaryKey;column:id"`
	FeedID         uuid.UUID  `json:"feed_id" gorm:"type:text;not null;index;column:feed_id" validate:"required"`
	GUID           string     `json:"guid" gorm:"type:text;not null;index;column:guid" validate:"required"`
	Title          string     `json:"title" gorm:"type:text;not null;column:title"`
	AudioURL       string     `json:"audio_url" gorm:"type:text;not null;column:audio_url"`
	Duration       int64      `json:"duration" gorm:"type:integer;not null;default:0;column:duration"` // seconds
	Image          *string    `json:"image,omitempty" gorm:"type:text;column:image"`
	PublishedAt    *time.Time `json:"published_at,omitempty" gorm:"type:datetime;column:published_at"`
	TrackOrder     int        `json:"track_order" gorm:"type:integer;not null;default:0;column:track_order"`
	ValueRecipient *string    `json:"value_recipient,omitempty" gorm:"type:text;column:value_recipient"`
	ValueAmount    *int64     `json:"value_amount,omitempty" gorm:"type:integer;column:value_amount"`
	CreatedAt      time.Time  `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`

	// Populated by joins, not stored in database
	Feed *Feed `json:"feed,omitempty" gorm:"-"`
}

// NewTrack creates a new Track with generated UUID and timestamp
func NewTrack(feedID uuid.UUID, guid, title, audioURL string, trackOrder int) *Track {
	return &Track{
		ID:         uuid.New(),
		FeedID:     feedID,
		GUID:       guid,
		Title:      title,
		AudioURL:   audioURL,
		TrackOrder: trackOrder,
		CreatedAt:  time.Now().UTC(),
	}
}
