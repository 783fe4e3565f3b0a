package playlist

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tunecrate/tunecrate/internal/config"
	"github.com/tunecrate/tunecrate/internal/db"
	"github.com/tunecrate/tunecrate/internal/logger"
	"github.com/tunecrate/tunecrate/internal/models"
	"github.com/tunecrate/tunecrate/internal/rss"
)

// Populator discovers feeds referenced only by GUID and imports them into the
// catalog: directory lookup, feed record upsert, RSS fetch, bulk track insert.
// Idempotent; safe to call repeatedly with overlapping GUID sets.
type Populator struct {
	repos     *db.Repositories
	directory DirectoryClient
	fetcher   FeedFetcher
	cfg       *config.ResolverConfig
}

// NewPopulator creates a new auto-populator
func NewPopulator(repos *db.Repositories, dir DirectoryClient, fetcher FeedFetcher, cfg *config.ResolverConfig) *Populator {
	return &Populator{
		repos:     repos,
		directory: dir,
		fetcher:   fetcher,
		cfg:       cfg,
	}
}

// Populate ensures catalog feed records exist for the given feed GUIDs,
// returning the number of feeds present when it finishes (created now or
// already known). Runs in bounded concurrent batches under a wall-clock
// budget and a cumulative error ceiling; once either breaker trips, no new
// batches start and the partial count is returned. Individual failures never
// propagate as errors.
func (p *Populator) Populate(ctx context.Context, feedGuids []string) int {
	guids := dedupe(feedGuids)
	if len(guids) == 0 {
		return 0
	}

	existing, err := p.repos.Feeds.GetByGUIDs(ctx, guids)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to check existing feeds before populate")
		return 0
	}

	known := make(map[string]bool, len(existing))
	for _, feed := range existing {
		known[feed.GUID] = true
	}

	missing := make([]string, 0, len(guids))
	for _, guid := range guids {
		if !known[guid] {
			missing = append(missing, guid)
		}
	}

	populated := len(existing)
	if len(missing) == 0 {
		return populated
	}
	if !p.directory.Enabled() {
		logger.Log.Debug().Int("missing", len(missing)).Msg("Directory credentials absent, skipping feed auto-population")
		return populated
	}

	budgetCtx, cancel := context.WithTimeout(ctx, p.cfg.PopulateBudget)
	defer cancel()

	breaker := NewErrorBreaker(p.cfg.PopulateErrorCeiling)

	var (
		mu    sync.Mutex
		added int
	)

	for start := 0; start < len(missing); start += p.cfg.BatchSize {
		if budgetCtx.Err() != nil || breaker.Tripped() {
			logger.Log.Warn().
				Int("failures", breaker.Failures()).
				Int("remaining", len(missing)-start).
				Msg("Feed auto-population stopped early")
			break
		}

		end := start + p.cfg.BatchSize
		if end > len(missing) {
			end = len(missing)
		}

		var wg sync.WaitGroup
		for _, guid := range missing[start:end] {
			wg.Add(1)
			go func(guid string) {
				defer wg.Done()
				if p.populateOne(budgetCtx, guid, breaker) {
					mu.Lock()
					added++
					mu.Unlock()
				}
			}(guid)
		}
		wg.Wait()

		if end < len(missing) {
			select {
			case <-budgetCtx.Done():
			case <-time.After(p.cfg.BatchDelay):
			}
		}
	}

	logger.Log.Info().
		Int("requested", len(guids)).
		Int("already_known", populated).
		Int("added", added).
		Int("failures", breaker.Failures()).
		Msg("Feed auto-population finished")

	return populated + added
}

// populateOne imports a single feed by GUID. Returns true when the feed
// record exists afterward, whether created here or by a concurrent pass.
func (p *Populator) populateOne(ctx context.Context, guid string, breaker *ErrorBreaker) bool {
	dirFeed, err := p.directory.FeedByGUID(ctx, guid)
	if err != nil {
		breaker.RecordFailure()
		logger.Log.Debug().Err(err).Str("feed_guid", guid).Msg("Directory feed lookup failed")
		return false
	}

	sourceURL, ok := normalizeFeedURL(dirFeed.URL)
	if !ok {
		breaker.RecordFailure()
		logger.Log.Warn().Str("feed_guid", guid).Str("url", dirFeed.URL).Msg("Directory feed has invalid source URL")
		return false
	}

	candidate := models.NewFeed(guid, dirFeed.Title, sourceURL)
	if dirFeed.Author != "" {
		candidate.Artist = &dirFeed.Author
	}
	if artwork := feedArtwork(dirFeed.Artwork, dirFeed.Image); artwork != "" {
		candidate.Image = &artwork
	}

	feed, err := p.repos.Feeds.Upsert(ctx, candidate)
	if err != nil {
		// A duplicate means a concurrent pass won the race; the feed exists,
		// which was the goal
		if db.IsDuplicate(err) {
			return true
		}
		breaker.RecordFailure()
		logger.Log.Error().Err(err).Str("feed_guid", guid).Msg("Failed to upsert feed record")
		return false
	}

	// Only the pass that created the record imports its tracks
	if feed.ID != candidate.ID {
		return true
	}

	if err := p.importTracks(ctx, feed); err != nil {
		breaker.RecordFailure()
		msg := err.Error()
		if statusErr := p.repos.Feeds.UpdateStatus(ctx, feed.ID, models.FeedStatusError, &msg); statusErr != nil {
			logger.Log.Error().Err(statusErr).Str("feed_id", feed.ID.String()).Msg("Failed to mark feed as errored")
		}
		logger.Log.Warn().Err(err).Str("feed_guid", guid).Msg("Feed created but track import failed")
		// The feed record stands; it surfaces with error status for reparse
		return true
	}

	return true
}

// importTracks fetches the feed's RSS document and bulk-inserts its tracks
// with track_order taken from document position
func (p *Populator) importTracks(ctx context.Context, feed *models.Feed) error {
	parsed, err := p.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		return err
	}

	rows := buildTrackRows(feed.ID, parsed.Items)
	inserted, err := p.repos.Tracks.BulkInsert(ctx, rows, true)
	if err != nil {
		return err
	}

	logger.Log.Info().
		Str("feed_id", feed.ID.String()).
		Str("feed_guid", feed.GUID).
		Int64("tracks", inserted).
		Msg("Imported tracks for discovered feed")

	return nil
}

// Reparse re-fetches an existing feed's RSS and reconciles its catalog
// tracks. GUID matches are preferred; when an item's GUID is absent from the
// catalog but its title or audio URL matches an existing track, the existing
// row's GUID is updated rather than a duplicate inserted. This heuristic is
// best-effort and can mismatch feeds carrying duplicate titles.
func (p *Populator) Reparse(ctx context.Context, feedID uuid.UUID) error {
	feed, err := p.repos.Feeds.GetByID(ctx, feedID)
	if err != nil {
		return err
	}

	parsed, err := p.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		msg := err.Error()
		if statusErr := p.repos.Feeds.UpdateStatus(ctx, feed.ID, models.FeedStatusError, &msg); statusErr != nil {
			logger.Log.Error().Err(statusErr).Str("feed_id", feed.ID.String()).Msg("Failed to mark feed as errored")
		}
		return err
	}

	existing, err := p.repos.Tracks.GetByFeedID(ctx, feed.ID)
	if err != nil {
		return err
	}

	byGUID := make(map[string]*models.Track, len(existing))
	byTitle := make(map[string]*models.Track, len(existing))
	byAudio := make(map[string]*models.Track, len(existing))
	for _, track := range existing {
		byGUID[track.GUID] = track
		byTitle[strings.ToLower(track.Title)] = track
		byAudio[track.AudioURL] = track
	}

	var fresh []rss.ParsedItem
	for _, item := range parsed.Items {
		if _, ok := byGUID[item.GUID]; ok {
			continue
		}

		// Fallback matching for feeds that rotated their GUIDs
		match := byTitle[strings.ToLower(item.Title)]
		if match == nil {
			match = byAudio[item.AudioURL]
		}
		if match != nil {
			if err := p.repos.Tracks.UpdateGUID(ctx, match.ID, item.GUID); err != nil {
				logger.Log.Warn().Err(err).Str("track_id", match.ID.String()).Msg("Failed to update track GUID during reparse")
			}
			continue
		}

		fresh = append(fresh, item)
	}

	if len(fresh) > 0 {
		rows := buildTrackRows(feed.ID, fresh)
		for i, row := range rows {
			row.TrackOrder = len(existing) + i
		}
		if _, err := p.repos.Tracks.BulkInsert(ctx, rows, true); err != nil {
			return err
		}
	}

	return p.repos.Feeds.UpdateStatus(ctx, feed.ID, models.FeedStatusActive, nil)
}

// buildTrackRows converts parsed RSS items into catalog track rows,
// preserving document order in track_order
func buildTrackRows(feedID uuid.UUID, items []rss.ParsedItem) []*models.Track {
	rows := make([]*models.Track, 0, len(items))
	for i, item := range items {
		track := models.NewTrack(feedID, item.GUID, item.Title, item.AudioURL, i)
		track.Duration = item.Duration
		track.PublishedAt = item.PublishedAt
		if item.Image != "" {
			image := item.Image
			track.Image = &image
		}
		if item.ValueRecipient != "" {
			recipient := item.ValueRecipient
			amount := item.ValueAmount
			track.ValueRecipient = &recipient
			track.ValueAmount = &amount
		}
		rows = append(rows, track)
	}
	return rows
}

// normalizeFeedURL validates a directory-supplied source URL
func normalizeFeedURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", false
	}
	if parsed.Host == "" {
		return "", false
	}
	return parsed.String(), true
}

// feedArtwork prefers the dedicated artwork URL over the plain image
func feedArtwork(artwork, image string) string {
	if artwork != "" {
		return artwork
	}
	return image
}

// dedupe removes duplicates and empty values, preserving first-seen order
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
