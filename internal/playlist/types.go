package playlist

import "time"

// Source tier constants recording where a track was resolved from
const (
	SourceTierCatalog = "catalog"
	SourceTierCache   = "cache"
	SourceTierAPI     = "api"
)

// ReferenceItem is a single remote-item reference parsed from a playlist
// document. Identity is the (FeedGUID, ItemGUID) pair; document order is
// significant and preserved end-to-end.
type ReferenceItem struct {
	FeedGUID     string `json:"feed_guid"`
	ItemGUID     string `json:"item_guid"`
	EpisodeTitle string `json:"episode_title,omitempty"`
	EpisodeID    string `json:"episode_id,omitempty"`
	Position     int    `json:"position"`
}

// EpisodeGroup is a named grouping of reference items delimited by episode
// markers in the source document
type EpisodeGroup struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Items      []ReferenceItem `json:"items"`
	TrackCount int             `json:"track_count"`
}

// ResolvedTrack is the public shape of a playable resolved track
type ResolvedTrack struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Artist         string     `json:"artist,omitempty"`
	AudioURL       string     `json:"audio_url"`
	Duration       int64      `json:"duration"`
	Image          string     `json:"image,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	FeedID         string     `json:"feed_id"`
	FeedTitle      string     `json:"feed_title"`
	GUID           string     `json:"guid"`
	ValueRecipient string     `json:"value_recipient,omitempty"`
	ValueAmount    int64      `json:"value_amount,omitempty"`
	SourceTier     string     `json:"source_tier"`
	EpisodeID      string     `json:"episode_id,omitempty"`
	EpisodeTitle   string     `json:"episode_title,omitempty"`
}

// ResolveResult is the final ordered output of a playlist resolution pass
type ResolveResult struct {
	Tracks           []ResolvedTrack `json:"tracks"`
	Episodes         []EpisodeGroup  `json:"episodes"`
	TotalRemoteItems int             `json:"total_remote_items"`
	ResolvedCount    int             `json:"resolved_count"`
}
