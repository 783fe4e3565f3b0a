package playlist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tunecrate/tunecrate/internal/db"
)

// playlistServer serves a fixed XML document and counts fetches
type playlistServer struct {
	*httptest.Server
	fetches atomic.Int64
}

func newPlaylistServer(t *testing.T, xml string) *playlistServer {
	t.Helper()
	ps := &playlistServer{}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ps.fetches.Add(1)
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(xml)) // nolint:errcheck
	}))
	t.Cleanup(ps.Close)
	return ps
}

func newTestService(repos *db.Repositories, dir *fakeDirectory, fetcher *fakeFetcher) *Service {
	return NewService(repos, dir, fetcher, testConfig())
}

func registerPlaylist(t *testing.T, svc *Service, id, sourceURL string) {
	t.Helper()
	_, err := svc.Register(context.Background(), id, "Untitled", sourceURL)
	require.NoError(t, err)
}

const twoItemPlaylistXML = `<?xml version="1.0"?>
<playlist>
  <title>Chill Mix</title>
  <description>Late night selections</description>
  <podcast:remoteItem feedGuid="feed-1" itemGuid="item-1"/>
  <podcast:remoteItem feedGuid="feed-1" itemGuid="item-2"/>
</playlist>`

func TestServiceResolve_UnknownPlaylist(t *testing.T) {
	repos := setupTestRepos(t)
	svc := newTestService(repos, newFakeDirectory(), newFakeFetcher())

	_, err := svc.Resolve(context.Background(), "does-not-exist", false)
	assert.ErrorIs(t, err, ErrPlaylistNotFound)
}

func TestServiceResolve_FetchesParsesAndResolves(t *testing.T) {
	repos := setupTestRepos(t)
	svc := newTestService(repos, newFakeDirectory(), newFakeFetcher())

	feed := seedFeed(t, repos, "feed-1", "Feed One")
	seedTrack(t, repos, feed, "item-1", "First", 0)
	seedTrack(t, repos, feed, "item-2", "Second", 1)

	server := newPlaylistServer(t, twoItemPlaylistXML)
	registerPlaylist(t, svc, "mix-1", server.URL)

	result, err := svc.Resolve(context.Background(), "mix-1", false)
	require.NoError(t, err)

	require.Len(t, result.Tracks, 2)
	assert.Equal(t, "item-1", result.Tracks[0].GUID)
	assert.Equal(t, "item-2", result.Tracks[1].GUID)
	assert.Equal(t, SourceTierCatalog, result.Tracks[0].SourceTier)

	// Document metadata flowed into the playlist record
	pl, err := repos.Playlists.GetByID(context.Background(), "mix-1")
	require.NoError(t, err)
	assert.Equal(t, "Chill Mix", pl.Title)
	require.NotNil(t, pl.Description)
	assert.Equal(t, "Late night selections", *pl.Description)
}

func TestServiceResolve_SecondCallHitsResponseCache(t *testing.T) {
	repos := setupTestRepos(t)
	svc := newTestService(repos, newFakeDirectory(), newFakeFetcher())

	feed := seedFeed(t, repos, "feed-1", "Feed One")
	seedTrack(t, repos, feed, "item-1", "First", 0)
	seedTrack(t, repos, feed, "item-2", "Second", 1)

	server := newPlaylistServer(t, twoItemPlaylistXML)
	registerPlaylist(t, svc, "mix-1", server.URL)

	first, err := svc.Resolve(context.Background(), "mix-1", false)
	require.NoError(t, err)
	second, err := svc.Resolve(context.Background(), "mix-1", false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), server.fetches.Load(), "cached response must not refetch the document")
}

func TestServiceResolve_ForceRefreshMaterializesSnapshot(t *testing.T) {
	repos := setupTestRepos(t)
	dir := newFakeDirectory()
	fetcher := newFakeFetcher()
	svc := newTestService(repos, dir, fetcher)

	feed := seedFeed(t, repos, "feed-1", "Feed One")
	seedTrack(t, repos, feed, "item-1", "First", 0)
	seedTrack(t, repos, feed, "item-2", "Second", 1)

	server := newPlaylistServer(t, twoItemPlaylistXML)
	registerPlaylist(t, svc, "mix-1", server.URL)

	refreshed, err := svc.Resolve(context.Background(), "mix-1", true)
	require.NoError(t, err)
	require.Len(t, refreshed.Tracks, 2)

	rows, err := repos.Playlists.GetTracks(context.Background(), "mix-1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// A fresh service shares only the database, so its empty response cache
	// cannot mask the snapshot path
	fetchesBefore := server.fetches.Load()
	fresh := newTestService(repos, dir, fetcher)
	snapshot, err := fresh.Resolve(context.Background(), "mix-1", false)
	require.NoError(t, err)

	require.Len(t, snapshot.Tracks, 2)
	assert.Equal(t, "item-1", snapshot.Tracks[0].GUID)
	assert.Equal(t, "item-2", snapshot.Tracks[1].GUID)
	assert.Equal(t, SourceTierCache, snapshot.Tracks[0].SourceTier)
	assert.Equal(t, fetchesBefore, server.fetches.Load(), "snapshot reads must not refetch the document")
}

func TestServiceResolve_ForceRefreshBypassesCaches(t *testing.T) {
	repos := setupTestRepos(t)
	svc := newTestService(repos, newFakeDirectory(), newFakeFetcher())

	feed := seedFeed(t, repos, "feed-1", "Feed One")
	seedTrack(t, repos, feed, "item-1", "First", 0)
	seedTrack(t, repos, feed, "item-2", "Second", 1)

	server := newPlaylistServer(t, twoItemPlaylistXML)
	registerPlaylist(t, svc, "mix-1", server.URL)

	_, err := svc.Resolve(context.Background(), "mix-1", true)
	require.NoError(t, err)
	_, err = svc.Resolve(context.Background(), "mix-1", true)
	require.NoError(t, err)

	assert.Equal(t, int64(2), server.fetches.Load())
}

func TestServiceResolve_EpisodeGroupsSurviveSnapshot(t *testing.T) {
	repos := setupTestRepos(t)
	dir := newFakeDirectory()
	fetcher := newFakeFetcher()
	svc := newTestService(repos, dir, fetcher)

	feed := seedFeed(t, repos, "feed-1", "Feed One")
	seedTrack(t, repos, feed, "i1", "One", 0)
	seedTrack(t, repos, feed, "i2", "Two", 1)

	xml := `<playlist>
  <marker>Opening Set</marker>
  <podcast:remoteItem feedGuid="feed-1" itemGuid="i1"/>
  <marker>Closing Set</marker>
  <podcast:remoteItem feedGuid="feed-1" itemGuid="i2"/>
</playlist>`
	server := newPlaylistServer(t, xml)
	registerPlaylist(t, svc, "mix-ep", server.URL)

	_, err := svc.Resolve(context.Background(), "mix-ep", true)
	require.NoError(t, err)

	fresh := newTestService(repos, dir, fetcher)
	snapshot, err := fresh.Resolve(context.Background(), "mix-ep", false)
	require.NoError(t, err)

	require.Len(t, snapshot.Episodes, 2)
	assert.Equal(t, "Opening Set", snapshot.Episodes[0].Title)
	assert.Equal(t, "opening-set", snapshot.Episodes[0].ID)
	assert.Equal(t, 1, snapshot.Episodes[0].TrackCount)
	assert.Equal(t, "closing-set", snapshot.Episodes[1].ID)
	assert.Equal(t, "opening-set", snapshot.Tracks[0].EpisodeID)
}

func TestServiceResolve_DocumentFetchFailure(t *testing.T) {
	repos := setupTestRepos(t)
	svc := newTestService(repos, newFakeDirectory(), newFakeFetcher())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	registerPlaylist(t, svc, "mix-broken", server.URL)

	_, err := svc.Resolve(context.Background(), "mix-broken", false)
	assert.ErrorIs(t, err, ErrDocumentFetch)
}

func TestServiceRegister_UpsertsExisting(t *testing.T) {
	repos := setupTestRepos(t)
	svc := newTestService(repos, newFakeDirectory(), newFakeFetcher())

	_, err := svc.Register(context.Background(), "mix-1", "First Title", "https://example.com/a.xml")
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), "mix-1", "Second Title", "https://example.com/b.xml")
	require.NoError(t, err)

	pl, err := repos.Playlists.GetByID(context.Background(), "mix-1")
	require.NoError(t, err)
	assert.Equal(t, "Second Title", pl.Title)
	assert.Equal(t, "https://example.com/b.xml", pl.SourceURL)
}
