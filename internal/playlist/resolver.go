package playlist

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tunecrate/tunecrate/internal/config"
	"github.com/tunecrate/tunecrate/internal/db"
	"github.com/tunecrate/tunecrate/internal/directory"
	"github.com/tunecrate/tunecrate/internal/logger"
	"github.com/tunecrate/tunecrate/internal/models"
)

// Resolver turns an ordered list of reference items into playable tracks
// through tiered lookups: catalog first, then auto-population plus one
// catalog re-read, then per-item directory fallback.
type Resolver struct {
	repos        *db.Repositories
	directory    DirectoryClient
	populator    *Populator
	cfg          *config.ResolverConfig
	episodeLimit int
}

// NewResolver creates a new resolver
func NewResolver(repos *db.Repositories, dir DirectoryClient, populator *Populator, cfg *config.ResolverConfig, episodeLimit int) *Resolver {
	return &Resolver{
		repos:        repos,
		directory:    dir,
		populator:    populator,
		cfg:          cfg,
		episodeLimit: episodeLimit,
	}
}

// resolution is the internal per-item state: either unresolved, resolved
// with a catalog-backed track, or resolved without one (directory hit whose
// feed is not in the catalog). Conversion to the public ResolvedTrack shape
// happens only at the merge boundary.
type resolution struct {
	item     ReferenceItem
	track    *models.Track
	tier     string
	resolved bool
}

// Resolve resolves a parsed playlist document into ordered playable tracks.
// Output order follows document order; individual misses are accounted, not
// errors. At least one resolution attempt is made per item.
func (r *Resolver) Resolve(ctx context.Context, doc *Document) *ResolveResult {
	results := make([]resolution, len(doc.Items))
	for i, item := range doc.Items {
		results[i] = resolution{item: item}
	}

	// Tier 1: one batched catalog read for every referenced item GUID
	r.lookupCatalog(ctx, results)

	// Tier 2: populate missing feeds, then re-read the catalog once
	if missing := r.unresolvedFeedGuids(results); len(missing) > 0 {
		r.populator.Populate(ctx, missing)
		r.lookupCatalog(ctx, results)
	}

	// Tier 3: per-item directory fallback in bounded batches
	r.lookupDirectory(ctx, results)

	return r.merge(ctx, doc, results)
}

// lookupCatalog resolves unresolved items against the catalog with a single
// batched query, writing hits back into their slots
func (r *Resolver) lookupCatalog(ctx context.Context, results []resolution) {
	guids := make([]string, 0, len(results))
	for i := range results {
		if !results[i].resolved {
			guids = append(guids, results[i].item.ItemGUID)
		}
	}
	if len(guids) == 0 {
		return
	}

	tracks, err := r.repos.Tracks.GetByGUIDs(ctx, guids)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Catalog track lookup failed")
		return
	}

	byGUID := make(map[string]*models.Track, len(tracks))
	for _, track := range tracks {
		if _, ok := byGUID[track.GUID]; !ok {
			byGUID[track.GUID] = track
		}
	}

	for i := range results {
		if results[i].resolved {
			continue
		}
		if track, ok := byGUID[results[i].item.ItemGUID]; ok {
			results[i].track = track
			results[i].tier = SourceTierCatalog
			results[i].resolved = true
		}
	}
}

// unresolvedFeedGuids collects the distinct feed GUIDs of unresolved items
func (r *Resolver) unresolvedFeedGuids(results []resolution) []string {
	guids := make([]string, 0, len(results))
	for i := range results {
		if !results[i].resolved {
			guids = append(guids, results[i].item.FeedGUID)
		}
	}
	return dedupe(guids)
}

// lookupDirectory resolves remaining items directly against the directory
// API in batches of fixed concurrency with an inter-batch delay. Each result
// is written back into its own slot so completion order never reorders
// output. Individual lookup failures are isolated.
func (r *Resolver) lookupDirectory(ctx context.Context, results []resolution) {
	if !r.directory.Enabled() {
		return
	}

	pending := make([]int, 0, len(results))
	for i := range results {
		if !results[i].resolved {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return
	}

	for start := 0; start < len(pending); start += r.cfg.BatchSize {
		if ctx.Err() != nil {
			return
		}

		end := start + r.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}

		var wg sync.WaitGroup
		for _, idx := range pending[start:end] {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = r.resolveViaDirectory(ctx, results[idx])
			}(idx)
		}
		wg.Wait()

		if end < len(pending) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.cfg.BatchDelay):
			}
		}
	}
}

// resolveViaDirectory resolves one item against the directory: direct
// episode-by-GUID lookup first, then feed lookup plus episode listing. A hit
// becomes playable only when its feed exists in the catalog, in which case
// the track is inserted so the result carries a real catalog id.
func (r *Resolver) resolveViaDirectory(ctx context.Context, res resolution) resolution {
	episode, err := r.directory.EpisodeByGUID(ctx, res.item.ItemGUID, res.item.FeedGUID)
	if err != nil {
		if !directory.IsNotFound(err) {
			logger.Log.Debug().Err(err).Str("item_guid", res.item.ItemGUID).Msg("Directory episode lookup failed")
		}
		episode = r.findEpisodeViaFeed(ctx, res.item)
	}
	if episode == nil {
		return res
	}

	res.resolved = true
	res.tier = SourceTierAPI

	track, err := r.adoptEpisode(ctx, res.item, episode)
	if err != nil {
		logger.Log.Debug().Err(err).Str("item_guid", res.item.ItemGUID).Msg("Directory hit could not be adopted into catalog")
		return res
	}
	res.track = track
	return res
}

// findEpisodeViaFeed is the listing fallback: feed by GUID, episode listing,
// match by item GUID
func (r *Resolver) findEpisodeViaFeed(ctx context.Context, item ReferenceItem) *directory.Episode {
	feed, err := r.directory.FeedByGUID(ctx, item.FeedGUID)
	if err != nil {
		if !directory.IsNotFound(err) {
			logger.Log.Debug().Err(err).Str("feed_guid", item.FeedGUID).Msg("Directory feed lookup failed")
		}
		return nil
	}

	episodes, err := r.directory.EpisodesByFeedID(ctx, feed.ID, r.episodeLimit)
	if err != nil {
		logger.Log.Debug().Err(err).Str("feed_guid", item.FeedGUID).Msg("Directory episode listing failed")
		return nil
	}

	for i := range episodes {
		if episodes[i].GUID == item.ItemGUID {
			return &episodes[i]
		}
	}
	return nil
}

// adoptEpisode inserts a directory episode as a catalog track when its feed
// is already known, returning the catalog-backed row. Episodes of unknown
// feeds stay unadopted; they count as resolved but are not playable.
func (r *Resolver) adoptEpisode(ctx context.Context, item ReferenceItem, episode *directory.Episode) (*models.Track, error) {
	feed, err := r.repos.Feeds.GetByGUID(ctx, item.FeedGUID)
	if err != nil {
		return nil, err
	}

	if episode.EnclosureURL == "" {
		return nil, db.ErrNotFound
	}

	count, err := r.repos.Tracks.CountByFeedID(ctx, feed.ID)
	if err != nil {
		return nil, err
	}

	track := models.NewTrack(feed.ID, episode.GUID, episode.Title, episode.EnclosureURL, int(count))
	track.Duration = episode.Duration
	if episode.Image != "" {
		image := episode.Image
		track.Image = &image
	}
	if episode.DatePublished > 0 {
		published := time.Unix(episode.DatePublished, 0).UTC()
		track.PublishedAt = &published
	}

	if _, err := r.repos.Tracks.BulkInsert(ctx, []*models.Track{track}, true); err != nil {
		return nil, err
	}

	// Read the winning row back in case a concurrent insert got there first
	tracks, err := r.repos.Tracks.GetByGUIDs(ctx, []string{episode.GUID})
	if err != nil {
		return nil, err
	}
	for _, existing := range tracks {
		if existing.FeedID == feed.ID {
			return existing, nil
		}
	}
	return track, nil
}

// merge converts per-item resolutions into the public result, preserving
// document order, filtering unplayable entries, and regrouping episodes
// against the playable set so group counts reflect playable tracks only
func (r *Resolver) merge(ctx context.Context, doc *Document, results []resolution) *ResolveResult {
	out := &ResolveResult{
		Tracks:           make([]ResolvedTrack, 0, len(results)),
		TotalRemoteItems: len(results),
	}

	feeds := r.feedsForResults(ctx, results)

	playable := make(map[string]bool, len(results))
	for i := range results {
		res := &results[i]
		if res.resolved {
			out.ResolvedCount++
		}
		if res.track == nil || res.track.AudioURL == "" || res.track.ID == uuid.Nil {
			continue
		}

		resolved := ResolvedTrack{
			ID:           res.track.ID.String(),
			Title:        res.track.Title,
			AudioURL:     res.track.AudioURL,
			Duration:     res.track.Duration,
			FeedID:       res.track.FeedID.String(),
			GUID:         res.track.GUID,
			PublishedAt:  res.track.PublishedAt,
			SourceTier:   res.tier,
			EpisodeID:    res.item.EpisodeID,
			EpisodeTitle: res.item.EpisodeTitle,
		}
		if res.track.Image != nil {
			resolved.Image = *res.track.Image
		}
		if res.track.ValueRecipient != nil {
			resolved.ValueRecipient = *res.track.ValueRecipient
		}
		if res.track.ValueAmount != nil {
			resolved.ValueAmount = *res.track.ValueAmount
		}
		if feed := feeds[res.track.FeedID]; feed != nil {
			resolved.FeedTitle = feed.Title
			if feed.Artist != nil {
				resolved.Artist = *feed.Artist
			}
			if resolved.Image == "" && feed.Image != nil {
				resolved.Image = *feed.Image
			}
		}

		out.Tracks = append(out.Tracks, resolved)
		playable[referenceKey(res.item)] = true
	}

	out.Episodes = regroupEpisodes(doc.Episodes, playable)

	return out
}

// feedsForResults batch-fetches the feeds behind all catalog-backed tracks
func (r *Resolver) feedsForResults(ctx context.Context, results []resolution) map[uuid.UUID]*models.Feed {
	seen := make(map[uuid.UUID]bool)
	ids := make([]uuid.UUID, 0, len(results))
	for i := range results {
		if results[i].track == nil {
			continue
		}
		id := results[i].track.FeedID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	byID := make(map[uuid.UUID]*models.Feed, len(ids))
	if len(ids) == 0 {
		return byID
	}

	feeds, err := r.repos.Feeds.GetByIDs(ctx, ids)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to fetch feeds for resolved tracks")
		return byID
	}
	for _, feed := range feeds {
		byID[feed.ID] = feed
	}
	return byID
}

// regroupEpisodes intersects each episode group's item list with the
// playable set and recomputes track counts
func regroupEpisodes(groups []EpisodeGroup, playable map[string]bool) []EpisodeGroup {
	out := make([]EpisodeGroup, 0, len(groups))
	for _, group := range groups {
		regrouped := EpisodeGroup{
			ID:    group.ID,
			Title: group.Title,
			Items: make([]ReferenceItem, 0, len(group.Items)),
		}
		for _, item := range group.Items {
			if playable[referenceKey(item)] {
				regrouped.Items = append(regrouped.Items, item)
			}
		}
		regrouped.TrackCount = len(regrouped.Items)
		out = append(out, regrouped)
	}
	return out
}

// referenceKey is the identity of a reference item
func referenceKey(item ReferenceItem) string {
	return item.FeedGUID + "|" + item.ItemGUID
}
