package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tunecrate/tunecrate/internal/db"
	"github.com/tunecrate/tunecrate/internal/logger"
	"github.com/tunecrate/tunecrate/internal/models"
	"github.com/tunecrate/tunecrate/internal/playlist"
)

const reparseTimeout = 60 * time.Second

// FeedResponse represents a catalog feed in API responses
type FeedResponse struct {
	ID            string     `json:"id"`
	GUID          string     `json:"guid"`
	Title         string     `json:"title"`
	Artist        *string    `json:"artist,omitempty"`
	Image         *string    `json:"image,omitempty"`
	URL           string     `json:"url"`
	Status        string     `json:"status"`
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`
	LastError     *string    `json:"last_error,omitempty"`
	TrackCount    int64      `json:"track_count"`
}

// FeedListResponse represents a list of catalog feeds
type FeedListResponse struct {
	Feeds []*FeedResponse `json:"feeds"`
	Total int64           `json:"total"`
}

// FeedHandler handles catalog feed API requests
type FeedHandler struct {
	repos     *db.Repositories
	populator *playlist.Populator
}

// NewFeedHandler creates a new feed handler instance
func NewFeedHandler(repos *db.Repositories, populator *playlist.Populator) *FeedHandler {
	return &FeedHandler{repos: repos, populator: populator}
}

func toFeedResponse(feed *models.Feed, trackCount int64) *FeedResponse {
	return &FeedResponse{
		ID:            feed.ID.String(),
		GUID:          feed.GUID,
		Title:         feed.Title,
		Artist:        feed.Artist,
		Image:         feed.Image,
		URL:           feed.URL,
		Status:        feed.Status,
		LastFetchedAt: feed.LastFetchedAt,
		LastError:     feed.LastError,
		TrackCount:    trackCount,
	}
}

// List handles GET /api/feeds
func (h *FeedHandler) List(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	feeds, err := h.repos.Feeds.List(ctx, 0, 0)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to list feeds")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list feeds",
		})
		return
	}

	response := FeedListResponse{Feeds: make([]*FeedResponse, 0, len(feeds))}
	for _, feed := range feeds {
		count, err := h.repos.Tracks.CountByFeedID(ctx, feed.ID)
		if err != nil {
			logger.Log.Warn().Err(err).Str("feed_id", feed.ID.String()).Msg("Failed to count feed tracks")
		}
		response.Feeds = append(response.Feeds, toFeedResponse(feed, count))
	}
	response.Total = int64(len(feeds))

	c.JSON(http.StatusOK, response)
}

// Reparse handles POST /api/feeds/:id/reparse
// Re-fetches the feed's RSS and reconciles its catalog tracks; intended for
// feeds that surfaced with error status after auto-population
func (h *FeedHandler) Reparse(c *gin.Context) {
	feedID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Feed id must be a valid UUID",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), reparseTimeout)
	defer cancel()

	if err := h.populator.Reparse(ctx, feedID); err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Feed not found",
			})
			return
		}

		logger.Log.Error().Err(err).Str("feed_id", feedID.String()).Msg("Feed reparse failed")
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "reparse_failed",
			Message: "Failed to reparse feed: " + err.Error(),
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// SetupFeedRoutes registers catalog feed routes
func SetupFeedRoutes(apiGroup *gin.RouterGroup, repos *db.Repositories, populator *playlist.Populator) {
	handler := NewFeedHandler(repos, populator)
	apiGroup.GET("/feeds", handler.List)
	apiGroup.POST("/feeds/:id/reparse", handler.Reparse)
}
