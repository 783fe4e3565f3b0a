package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tunecrate/tunecrate/internal/logger"
	"github.com/tunecrate/tunecrate/internal/playlist"
)

// Resolving a cold playlist can fan out to the directory API, so the handler
// timeout has to cover the populate budget, not just a DB read
const resolveTimeout = 5 * time.Minute

// ErrorResponse is the standard error payload
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RegisterPlaylistRequest represents a request to register a remote playlist
type RegisterPlaylistRequest struct {
	ID        string `json:"id" binding:"required"`
	Title     string `json:"title"`
	SourceURL string `json:"source_url" binding:"required,url"`
}

// PlaylistHandler handles playlist resolution API requests
type PlaylistHandler struct {
	service *playlist.Service
}

// NewPlaylistHandler creates a new playlist handler instance
func NewPlaylistHandler(service *playlist.Service) *PlaylistHandler {
	return &PlaylistHandler{service: service}
}

// Register handles POST /api/playlists
func (h *PlaylistHandler) Register(c *gin.Context) {
	var req RegisterPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	pl, err := h.service.Register(ctx, req.ID, req.Title, req.SourceURL)
	if err != nil {
		logger.Log.Error().Err(err).Str("playlist_id", req.ID).Msg("Failed to register playlist")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "register_failed",
			Message: "Failed to register playlist",
		})
		return
	}

	c.JSON(http.StatusCreated, pl)
}

// Resolve handles GET /api/playlists/:id
// The refresh query flag bypasses both cache tiers and rewrites the snapshot
func (h *PlaylistHandler) Resolve(c *gin.Context) {
	playlistID := c.Param("id")
	forceRefresh := c.Query("refresh") == "true" || c.Query("refresh") == "1"

	ctx, cancel := context.WithTimeout(c.Request.Context(), resolveTimeout)
	defer cancel()

	result, err := h.service.Resolve(ctx, playlistID, forceRefresh)
	if err != nil {
		if playlist.IsPlaylistNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Playlist not found",
			})
			return
		}
		if playlist.IsDocumentFetch(err) {
			logger.Log.Warn().Err(err).Str("playlist_id", playlistID).Msg("Playlist document unreachable")
			c.JSON(http.StatusBadGateway, ErrorResponse{
				Error:   "document_unreachable",
				Message: "Failed to fetch the playlist document",
			})
			return
		}

		logger.Log.Error().Err(err).Str("playlist_id", playlistID).Msg("Failed to resolve playlist")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "resolve_failed",
			Message: "Failed to resolve playlist",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// SetupPlaylistRoutes registers playlist routes
func SetupPlaylistRoutes(apiGroup *gin.RouterGroup, service *playlist.Service) {
	handler := NewPlaylistHandler(service)
	apiGroup.POST("/playlists", handler.Register)
	apiGroup.GET("/playlists/:id", handler.Resolve)
}
