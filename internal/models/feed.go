package models

import (
	"time"

	"github.com/google/uuid"
)

// Feed represents a catalog feed record discovered by reference or imported directly
type Feed struct {
	ID            uuid.UUID  `json:"id" gorm:"type:text;primaryKey;column:id"`
	GUID          string     `json:"guid" gorm:"type:text;not null;uniqueIndex;column:guid" validate:"required"`
	Title         string     `json:"title" gorm:"type:text;not null;column:title"`
	Artist        *string    `json:"artist,omitempty" gorm:"type:text;column:artist"`
	Image         *string    `json:"image,omitempty" gorm:"type:text;column:image"`
	URL           string     `json:"url" gorm:"type:text;not null;column:url"`
	Status        string     `json:"status" gorm:"type:text;not null;default:active;column:status"`
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty" gorm:"type:datetime;column:last_fetched_at"`
	LastError     *string    `json:"last_error,omitempty" gorm:"type:text;column:last_error"`
	CreatedAt     time.Time  `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

// NewFeed creates a new Feed with generated UUID and timestamps
func NewFeed(guid, title, url string) *Feed {
	now := time.Now().UTC()
	return &Feed{
		ID:        uuid.New(),
		GUID:      guid,
		Title:     title,
		URL:       url,
		Status:    FeedStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
