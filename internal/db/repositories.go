package db

// Repositories provides access to all database repositories
type Repositories struct {
	Feeds     *FeedRepository
	Tracks    *TrackRepository
	Playlists *PlaylistRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Feeds:     NewFeedRepository(db),
		Tracks:    NewTrackRepository(db),
		Playlists: NewPlaylistRepository(db),
	}
}
