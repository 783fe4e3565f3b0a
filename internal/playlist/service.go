package playlist

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/tunecrate/tunecrate/internal/config"
	"github.com/tunecrate/tunecrate/internal/db"
	"github.com/tunecrate/tunecrate/internal/logger"
	"github.com/tunecrate/tunecrate/internal/models"
)

const maxDocumentBytes = 8 << 20 // 8 MB

// Service is the top-level entry point for playlist resolution. It wires the
// document parser, resolver, auto-populator, and both cache tiers: the
// persisted materialized snapshot (default fast path) and the in-process
// response cache.
type Service struct {
	repos      *db.Repositories
	resolver   *Resolver
	populator  *Populator
	cache      *ResponseCache
	httpClient *http.Client
	cfg        *config.ResolverConfig
}

// NewService creates a fully wired playlist service
func NewService(repos *db.Repositories, dir DirectoryClient, fetcher FeedFetcher, cfg *config.Config) *Service {
	populator := NewPopulator(repos, dir, fetcher, &cfg.Resolver)
	resolver := NewResolver(repos, dir, populator, &cfg.Resolver, cfg.Directory.EpisodeLimit)

	return &Service{
		repos:     repos,
		resolver:  resolver,
		populator: populator,
		cache:     NewResponseCache(cfg.Resolver.ResponseCacheTTL),
		httpClient: &http.Client{
			Timeout: cfg.Resolver.PlaylistFetchTimeout,
		},
		cfg: &cfg.Resolver,
	}
}

// Populator exposes the auto-populator for feed maintenance operations
func (s *Service) Populator() *Populator {
	return s.populator
}

// Resolve produces the ordered playable track list for a registered playlist.
//
// Normal requests take the cheapest available path: materialized snapshot
// first (no network, no resolution work), then the response cache, then a
// full parse-and-resolve pass. forceRefresh bypasses both tiers, re-fetches
// the XML, re-resolves, and overwrites the snapshot.
func (s *Service) Resolve(ctx context.Context, playlistID string, forceRefresh bool) (*ResolveResult, error) {
	pl, err := s.repos.Playlists.GetByID(ctx, playlistID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("playlist %s: %w", playlistID, ErrPlaylistNotFound)
		}
		return nil, fmt.Errorf("failed to load playlist %s: %w", playlistID, err)
	}

	if !forceRefresh {
		if result, ok := s.fromSnapshot(ctx, pl.ID); ok {
			return result, nil
		}
		if result, ok := s.cache.Get(pl.ID); ok {
			logger.Log.Debug().Str("playlist_id", pl.ID).Msg("Serving playlist from response cache")
			return result, nil
		}
	}

	data, err := s.fetchDocument(ctx, pl.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("playlist %s: %w: %v", pl.ID, ErrDocumentFetch, err)
	}

	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("playlist %s: %w: %v", pl.ID, ErrDocumentParse, err)
	}

	result := s.resolver.Resolve(ctx, doc)

	s.updateMetadata(ctx, pl, doc)

	if forceRefresh {
		s.writeSnapshot(ctx, pl.ID, result)
		s.cache.Invalidate(pl.ID)
	}
	s.cache.Set(pl.ID, result)

	logger.Log.Info().
		Str("playlist_id", pl.ID).
		Int("total_remote_items", result.TotalRemoteItems).
		Int("resolved", result.ResolvedCount).
		Int("playable", len(result.Tracks)).
		Bool("refresh", forceRefresh).
		Msg("Playlist resolved")

	return result, nil
}

// Register creates or updates a playlist record pointing at a remote XML document
func (s *Service) Register(ctx context.Context, id, title, sourceURL string) (*models.Playlist, error) {
	pl := &models.Playlist{
		ID:        id,
		Title:     title,
		SourceURL: sourceURL,
	}
	if err := s.repos.Playlists.Upsert(ctx, pl); err != nil {
		return nil, fmt.Errorf("failed to register playlist %s: %w", id, err)
	}
	return pl, nil
}

// fetchDocument downloads the playlist XML over plain HTTP
func (s *Service) fetchDocument(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
}

// fromSnapshot serves the materialized snapshot when one exists
func (s *Service) fromSnapshot(ctx context.Context, playlistID string) (*ResolveResult, bool) {
	rows, err := s.repos.Playlists.GetTracks(ctx, playlistID)
	if err != nil {
		logger.Log.Error().Err(err).Str("playlist_id", playlistID).Msg("Failed to read playlist snapshot")
		return nil, false
	}
	if len(rows) == 0 {
		return nil, false
	}

	feedIDs := make([]uuid.UUID, 0, len(rows))
	seen := make(map[uuid.UUID]bool)
	for _, row := range rows {
		if row.Track != nil && !seen[row.Track.FeedID] {
			seen[row.Track.FeedID] = true
			feedIDs = append(feedIDs, row.Track.FeedID)
		}
	}

	feedsByID := make(map[uuid.UUID]*models.Feed)
	if feeds, err := s.repos.Feeds.GetByIDs(ctx, feedIDs); err == nil {
		for _, feed := range feeds {
			feedsByID[feed.ID] = feed
		}
	}

	result := &ResolveResult{}
	var groups []EpisodeGroup
	groupIndex := make(map[string]int)

	for _, row := range rows {
		if row.Track == nil || row.Track.AudioURL == "" {
			continue
		}

		resolved := ResolvedTrack{
			ID:          row.Track.ID.String(),
			Title:       row.Track.Title,
			AudioURL:    row.Track.AudioURL,
			Duration:    row.Track.Duration,
			FeedID:      row.Track.FeedID.String(),
			GUID:        row.Track.GUID,
			PublishedAt: row.Track.PublishedAt,
			SourceTier:  SourceTierCache,
		}
		if row.Track.Image != nil {
			resolved.Image = *row.Track.Image
		}
		if row.Track.ValueRecipient != nil {
			resolved.ValueRecipient = *row.Track.ValueRecipient
		}
		if row.Track.ValueAmount != nil {
			resolved.ValueAmount = *row.Track.ValueAmount
		}

		var feedGUID string
		if feed := feedsByID[row.Track.FeedID]; feed != nil {
			resolved.FeedTitle = feed.Title
			feedGUID = feed.GUID
			if feed.Artist != nil {
				resolved.Artist = *feed.Artist
			}
			if resolved.Image == "" && feed.Image != nil {
				resolved.Image = *feed.Image
			}
		}

		if row.EpisodeID != nil {
			resolved.EpisodeID = *row.EpisodeID
			if row.EpisodeTitle != nil {
				resolved.EpisodeTitle = *row.EpisodeTitle
			}

			idx, ok := groupIndex[resolved.EpisodeID]
			if !ok {
				idx = len(groups)
				groupIndex[resolved.EpisodeID] = idx
				groups = append(groups, EpisodeGroup{ID: resolved.EpisodeID, Title: resolved.EpisodeTitle})
			}
			groups[idx].Items = append(groups[idx].Items, ReferenceItem{
				FeedGUID:     feedGUID,
				ItemGUID:     resolved.GUID,
				EpisodeID:    resolved.EpisodeID,
				EpisodeTitle: resolved.EpisodeTitle,
				Position:     row.Position,
			})
			groups[idx].TrackCount++
		}

		result.Tracks = append(result.Tracks, resolved)
	}

	result.Episodes = groups
	result.TotalRemoteItems = len(result.Tracks)
	result.ResolvedCount = len(result.Tracks)

	logger.Log.Debug().
		Str("playlist_id", playlistID).
		Int("tracks", len(result.Tracks)).
		Msg("Serving playlist from materialized snapshot")

	return result, true
}

// writeSnapshot overwrites the materialized snapshot with the freshly
// resolved playable tracks
func (s *Service) writeSnapshot(ctx context.Context, playlistID string, result *ResolveResult) {
	rows := make([]*models.PlaylistTrack, 0, len(result.Tracks))
	for i, track := range result.Tracks {
		trackID, err := uuid.Parse(track.ID)
		if err != nil {
			continue
		}
		row := models.NewPlaylistTrack(playlistID, trackID, i, nil)
		if track.EpisodeID != "" {
			episodeID := track.EpisodeID
			row.EpisodeID = &episodeID
			if track.EpisodeTitle != "" {
				episodeTitle := track.EpisodeTitle
				row.EpisodeTitle = &episodeTitle
			}
		}
		rows = append(rows, row)
	}

	if err := s.repos.Playlists.ReplaceTracks(ctx, playlistID, rows); err != nil {
		logger.Log.Error().Err(err).Str("playlist_id", playlistID).Msg("Failed to write playlist snapshot")
		return
	}

	logger.Log.Info().
		Str("playlist_id", playlistID).
		Int("tracks", len(rows)).
		Msg("Playlist snapshot materialized")
}

// updateMetadata refreshes the playlist record with metadata found in the document
func (s *Service) updateMetadata(ctx context.Context, pl *models.Playlist, doc *Document) {
	changed := false
	if doc.Title != "" && doc.Title != pl.Title {
		pl.Title = doc.Title
		changed = true
	}
	if doc.Description != "" && (pl.Description == nil || *pl.Description != doc.Description) {
		pl.Description = &doc.Description
		changed = true
	}
	if doc.ArtworkURL != "" && (pl.Artwork == nil || *pl.Artwork != doc.ArtworkURL) {
		pl.Artwork = &doc.ArtworkURL
		changed = true
	}
	if !changed {
		return
	}
	if err := s.repos.Playlists.Upsert(ctx, pl); err != nil {
		logger.Log.Warn().Err(err).Str("playlist_id", pl.ID).Msg("Failed to update playlist metadata")
	}
}
