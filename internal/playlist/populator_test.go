package playlist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tunecrate/tunecrate/internal/db"
	"github.com/tunecrate/tunecrate/internal/directory"
	"github.com/tunecrate/tunecrate/internal/models"
	"github.com/tunecrate/tunecrate/internal/rss"
)

func newTestPopulator(t *testing.T, dir *fakeDirectory, fetcher *fakeFetcher) (*Populator, *db.Repositories) {
	t.Helper()
	repos := setupTestRepos(t)
	cfg := testConfig()
	return NewPopulator(repos, dir, fetcher, &cfg.Resolver), repos
}

func TestPopulate_CreatesFeedAndImportsTracks(t *testing.T) {
	dir := newFakeDirectory()
	fetcher := newFakeFetcher()
	populator, repos := newTestPopulator(t, dir, fetcher)

	dir.feeds["feed-1"] = &directory.Feed{
		ID:          1,
		PodcastGUID: "feed-1",
		Title:       "Morning Mix",
		Author:      "DJ Test",
		URL:         "https://feeds.test/morning.xml",
		Artwork:     "https://img.test/art.png",
	}
	fetcher.feeds["https://feeds.test/morning.xml"] = parsedFeedFixture("Morning Mix", []string{"t1", "t2", "t3"})

	count := populator.Populate(context.Background(), []string{"feed-1"})
	assert.Equal(t, 1, count)

	feed, err := repos.Feeds.GetByGUID(context.Background(), "feed-1")
	require.NoError(t, err)
	assert.Equal(t, "Morning Mix", feed.Title)
	require.NotNil(t, feed.Artist)
	assert.Equal(t, "DJ Test", *feed.Artist)
	require.NotNil(t, feed.Image)
	assert.Equal(t, "https://img.test/art.png", *feed.Image)
	assert.Equal(t, models.FeedStatusActive, feed.Status)

	tracks, err := repos.Tracks.GetByFeedID(context.Background(), feed.ID)
	require.NoError(t, err)
	require.Len(t, tracks, 3)
	assert.Equal(t, "t1", tracks[0].GUID)
	assert.Equal(t, 0, tracks[0].TrackOrder)
	assert.Equal(t, 2, tracks[2].TrackOrder)
}

func TestPopulate_IsIdempotent(t *testing.T) {
	dir := newFakeDirectory()
	fetcher := newFakeFetcher()
	populator, repos := newTestPopulator(t, dir, fetcher)

	dir.feeds["feed-1"] = &directory.Feed{
		ID: 1, PodcastGUID: "feed-1", Title: "Feed", URL: "https://feeds.test/f.xml",
	}
	fetcher.feeds["https://feeds.test/f.xml"] = parsedFeedFixture("Feed", []string{"t1"})

	first := populator.Populate(context.Background(), []string{"feed-1"})
	second := populator.Populate(context.Background(), []string{"feed-1"})

	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)

	// The second pass short-circuits on the catalog check
	assert.Equal(t, 1, dir.feedCalls)
	assert.Equal(t, 1, fetcher.calls)

	feeds, err := repos.Feeds.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, feeds, 1)
}

func TestPopulate_KnownFeedsCountWithoutLookups(t *testing.T) {
	dir := newFakeDirectory()
	populator, repos := newTestPopulator(t, dir, newFakeFetcher())

	seedFeed(t, repos, "feed-known", "Known")

	count := populator.Populate(context.Background(), []string{"feed-known", "feed-known"})
	assert.Equal(t, 1, count)
	assert.Equal(t, 0, dir.totalCalls())
}

func TestPopulate_InvalidSourceURLRejected(t *testing.T) {
	dir := newFakeDirectory()
	populator, repos := newTestPopulator(t, dir, newFakeFetcher())

	dir.feeds["feed-bad"] = &directory.Feed{
		ID: 1, PodcastGUID: "feed-bad", Title: "Bad", URL: "ftp://not-a-feed",
	}

	count := populator.Populate(context.Background(), []string{"feed-bad"})
	assert.Equal(t, 0, count)

	_, err := repos.Feeds.GetByGUID(context.Background(), "feed-bad")
	assert.Error(t, err)
}

func TestPopulate_RSSFailureMarksFeedErrored(t *testing.T) {
	dir := newFakeDirectory()
	fetcher := newFakeFetcher() // no canned response, every fetch fails
	populator, repos := newTestPopulator(t, dir, fetcher)

	dir.feeds["feed-1"] = &directory.Feed{
		ID: 1, PodcastGUID: "feed-1", Title: "Flaky", URL: "https://feeds.test/flaky.xml",
	}

	// The feed record still counts: it exists and can be reparsed later
	count := populator.Populate(context.Background(), []string{"feed-1"})
	assert.Equal(t, 1, count)

	feed, err := repos.Feeds.GetByGUID(context.Background(), "feed-1")
	require.NoError(t, err)
	assert.Equal(t, models.FeedStatusError, feed.Status)
	require.NotNil(t, feed.LastError)
	assert.Contains(t, *feed.LastError, "connection refused")
}

func TestPopulate_DirectoryDisabledSkipsMissing(t *testing.T) {
	dir := newFakeDirectory()
	dir.enabled = false
	populator, repos := newTestPopulator(t, dir, newFakeFetcher())

	seedFeed(t, repos, "feed-known", "Known")

	count := populator.Populate(context.Background(), []string{"feed-known", "feed-missing"})
	assert.Equal(t, 1, count)
	assert.Equal(t, 0, dir.totalCalls())
}

func TestPopulate_ErrorCeilingStopsFurtherBatches(t *testing.T) {
	dir := newFakeDirectory() // every lookup misses and counts as a failure
	repos := setupTestRepos(t)
	cfg := testConfig()
	cfg.Resolver.BatchSize = 1
	cfg.Resolver.PopulateErrorCeiling = 2
	populator := NewPopulator(repos, dir, newFakeFetcher(), &cfg.Resolver)

	guids := []string{"g1", "g2", "g3", "g4", "g5"}
	count := populator.Populate(context.Background(), guids)

	assert.Equal(t, 0, count)
	// Two failing batches trip the breaker; remaining batches never start
	assert.Equal(t, 2, dir.feedCalls)
}

func TestReparse_AddsNewTracksAndRecoversStatus(t *testing.T) {
	dir := newFakeDirectory()
	fetcher := newFakeFetcher()
	populator, repos := newTestPopulator(t, dir, fetcher)

	feed := seedFeed(t, repos, "feed-1", "Feed")
	seedTrack(t, repos, feed, "t1", "One", 0)
	msg := "boom"
	require.NoError(t, repos.Feeds.UpdateStatus(context.Background(), feed.ID, models.FeedStatusError, &msg))

	fetcher.feeds[feed.URL] = parsedFeedFixture("Feed", []string{"t1", "t2"})

	require.NoError(t, populator.Reparse(context.Background(), feed.ID))

	tracks, err := repos.Tracks.GetByFeedID(context.Background(), feed.ID)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "t2", tracks[1].GUID)
	assert.Equal(t, 1, tracks[1].TrackOrder)

	updated, err := repos.Feeds.GetByID(context.Background(), feed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeedStatusActive, updated.Status)
	assert.Nil(t, updated.LastError)
}

func TestReparse_MatchesRotatedGuidByTitle(t *testing.T) {
	dir := newFakeDirectory()
	fetcher := newFakeFetcher()
	populator, repos := newTestPopulator(t, dir, fetcher)

	feed := seedFeed(t, repos, "feed-1", "Feed")
	seedTrack(t, repos, feed, "old-guid", "Same Song", 0)

	fetcher.feeds[feed.URL] = &rss.ParsedFeed{
		Title: "Feed",
		Items: []rss.ParsedItem{
			{GUID: "new-guid", Title: "Same Song", AudioURL: "https://cdn.test/rotated.mp3"},
		},
	}

	require.NoError(t, populator.Reparse(context.Background(), feed.ID))

	tracks, err := repos.Tracks.GetByFeedID(context.Background(), feed.ID)
	require.NoError(t, err)
	require.Len(t, tracks, 1, "rotated GUID must not duplicate the track")
	assert.Equal(t, "new-guid", tracks[0].GUID)
	assert.Equal(t, "Same Song", tracks[0].Title)
}

func TestReparse_FetchFailureMarksFeedErrored(t *testing.T) {
	dir := newFakeDirectory()
	fetcher := newFakeFetcher()
	populator, repos := newTestPopulator(t, dir, fetcher)

	feed := seedFeed(t, repos, "feed-1", "Feed")

	err := populator.Reparse(context.Background(), feed.ID)
	require.Error(t, err)

	updated, getErr := repos.Feeds.GetByID(context.Background(), feed.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.FeedStatusError, updated.Status)
}
