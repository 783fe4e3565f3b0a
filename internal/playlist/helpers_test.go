package playlist

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tunecrate/tunecrate/internal/config"
	"github.com/tunecrate/tunecrate/internal/db"
	"github.com/tunecrate/tunecrate/internal/directory"
	"github.com/tunecrate/tunecrate/internal/logger"
	"github.com/tunecrate/tunecrate/internal/models"
	"github.com/tunecrate/tunecrate/internal/rss"
)

func init() {
	logger.Init("error", false)
}

// setupTestRepos creates repositories backed by a temp sqlite database with
// real migrations applied
func setupTestRepos(t *testing.T) *db.Repositories {
	t.Helper()

	tmpFile := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(tmpFile)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "file://../../migrations"))

	return db.NewRepositories(database)
}

func testConfig() *config.Config {
	return &config.Config{
		Directory: config.DirectoryConfig{
			BaseURL:        "http://directory.test",
			RequestTimeout: time.Second,
			EpisodeLimit:   100,
		},
		Resolver: config.ResolverConfig{
			BatchSize:            10,
			BatchDelay:           time.Millisecond,
			PopulateBudget:       time.Minute,
			PopulateErrorCeiling: 5,
			ResponseCacheTTL:     time.Hour,
			PlaylistFetchTimeout: 5 * time.Second,
		},
	}
}

// seedFeed inserts a catalog feed with the given GUID
func seedFeed(t *testing.T, repos *db.Repositories, guid, title string) *models.Feed {
	t.Helper()
	feed := models.NewFeed(guid, title, "https://feeds.test/"+guid+".xml")
	require.NoError(t, repos.Feeds.Create(context.Background(), feed))
	return feed
}

// seedTrack inserts a catalog track for a feed
func seedTrack(t *testing.T, repos *db.Repositories, feed *models.Feed, guid, title string, order int) *models.Track {
	t.Helper()
	track := models.NewTrack(feed.ID, guid, title, "https://cdn.test/"+guid+".mp3", order)
	_, err := repos.Tracks.BulkInsert(context.Background(), []*models.Track{track}, false)
	require.NoError(t, err)
	return track
}

// fakeDirectory is an in-memory DirectoryClient recording call counts
type fakeDirectory struct {
	enabled          bool
	feeds            map[string]*directory.Feed
	episodesByFeed   map[int64][]directory.Episode
	episodesByGUID   map[string]*directory.Episode
	feedCalls        int
	episodeListCalls int
	episodeCalls     int
	mu               sync.Mutex
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		enabled:        true,
		feeds:          make(map[string]*directory.Feed),
		episodesByFeed: make(map[int64][]directory.Episode),
		episodesByGUID: make(map[string]*directory.Episode),
	}
}

func (f *fakeDirectory) Enabled() bool { return f.enabled }

func (f *fakeDirectory) FeedByGUID(_ context.Context, guid string) (*directory.Feed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedCalls++
	feed, ok := f.feeds[guid]
	if !ok {
		return nil, fmt.Errorf("feed %s: %w", guid, directory.ErrNotFound)
	}
	return feed, nil
}

func (f *fakeDirectory) EpisodesByFeedID(_ context.Context, feedID int64, _ int) ([]directory.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.episodeListCalls++
	return f.episodesByFeed[feedID], nil
}

func (f *fakeDirectory) EpisodeByGUID(_ context.Context, guid, _ string) (*directory.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.episodeCalls++
	episode, ok := f.episodesByGUID[guid]
	if !ok {
		return nil, fmt.Errorf("episode %s: %w", guid, directory.ErrNotFound)
	}
	return episode, nil
}

func (f *fakeDirectory) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feedCalls + f.episodeListCalls + f.episodeCalls
}

// parsedFeedFixture builds a parsed RSS feed with one item per GUID
func parsedFeedFixture(title string, itemGuids []string) *rss.ParsedFeed {
	feed := &rss.ParsedFeed{Title: title}
	for _, guid := range itemGuids {
		feed.Items = append(feed.Items, rss.ParsedItem{
			GUID:     guid,
			Title:    "Track " + guid,
			AudioURL: "https://cdn.test/" + guid + ".mp3",
		})
	}
	return feed
}

// fakeFetcher serves canned RSS parse results keyed by feed URL
type fakeFetcher struct {
	feeds map[string]*rss.ParsedFeed
	calls int
	mu    sync.Mutex
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{feeds: make(map[string]*rss.ParsedFeed)}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*rss.ParsedFeed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	feed, ok := f.feeds[url]
	if !ok {
		return nil, fmt.Errorf("fetch %s: connection refused", url)
	}
	return feed, nil
}
