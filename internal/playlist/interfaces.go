package playlist

import (
	"context"

	"github.com/tunecrate/tunecrate/internal/directory"
	"github.com/tunecrate/tunecrate/internal/rss"
)

// DirectoryClient is the directory API surface the engine consumes
type DirectoryClient interface {
	Enabled() bool
	FeedByGUID(ctx context.Context, guid string) (*directory.Feed, error)
	EpisodesByFeedID(ctx context.Context, feedID int64, max int) ([]directory.Episode, error)
	EpisodeByGUID(ctx context.Context, guid, feedGUID string) (*directory.Episode, error)
}

// FeedFetcher fetches and parses a feed's own RSS document
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (*rss.ParsedFeed, error)
}
