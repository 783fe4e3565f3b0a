// Package directory provides an authenticated client for the external
// podcast directory API used to resolve feeds and episodes by GUID.
package directory

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tunecrate/tunecrate/internal/config"
)

const userAgent = "tunecrate/1.0"

// ErrNotFound indicates the directory has no entry for the requested GUID
var ErrNotFound = errors.New("directory entry not found")

// IsNotFound checks if the error is a directory miss
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Feed is a directory feed record
type Feed struct {
	ID          int64  `json:"id"`
	PodcastGUID string `json:"podcastGuid"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Image       string `json:"image"`
	Artwork     string `json:"artwork"`
	URL         string `json:"url"`
}

// Episode is a directory episode record
type Episode struct {
	ID            int64  `json:"id"`
	GUID          string `json:"guid"`
	Title         string `json:"title"`
	EnclosureURL  string `json:"enclosureUrl"`
	EnclosureType string `json:"enclosureType"`
	Duration      int64  `json:"duration"`
	Image         string `json:"image"`
	DatePublished int64  `json:"datePublished"`
	FeedID        int64  `json:"feedId"`
}

type feedResponse struct {
	Status string `json:"status"`
	Feed   *Feed  `json:"feed"`
}

type episodesResponse struct {
	Status string    `json:"status"`
	Items  []Episode `json:"items"`
	Count  int       `json:"count"`
}

type episodeResponse struct {
	Status  string   `json:"status"`
	Episode *Episode `json:"episode"`
}

// Client is an authenticated HTTP client for the directory API.
// Every request carries a fresh time-based signature; signatures are never
// reused across calls because the timestamp is embedded in the hash.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a directory client from configuration
func NewClient(cfg *config.DirectoryConfig) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		now: time.Now,
	}
}

// Enabled reports whether API credentials are configured
func (c *Client) Enabled() bool {
	return c.apiKey != "" && c.apiSecret != ""
}

// FeedByGUID looks up a feed by its directory GUID.
// Returns ErrNotFound when the directory has no matching feed.
func (c *Client) FeedByGUID(ctx context.Context, guid string) (*Feed, error) {
	var resp feedResponse
	params := url.Values{"guid": {guid}}
	if err := c.get(ctx, "/podcasts/byguid", params, &resp); err != nil {
		return nil, err
	}
	if resp.Feed == nil || resp.Feed.ID == 0 {
		return nil, fmt.Errorf("feed %s: %w", guid, ErrNotFound)
	}
	return resp.Feed, nil
}

// EpisodesByFeedID lists up to max episodes for a directory feed id
func (c *Client) EpisodesByFeedID(ctx context.Context, feedID int64, max int) ([]Episode, error) {
	var resp episodesResponse
	params := url.Values{
		"id":  {strconv.FormatInt(feedID, 10)},
		"max": {strconv.Itoa(max)},
	}
	if err := c.get(ctx, "/episodes/byfeedid", params, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// EpisodeByGUID looks up a single episode by its GUID, optionally scoped to a
// feed GUID to disambiguate episodes that share GUIDs across feeds.
// Returns ErrNotFound when the directory has no matching episode.
func (c *Client) EpisodeByGUID(ctx context.Context, guid, feedGUID string) (*Episode, error) {
	var resp episodeResponse
	params := url.Values{"guid": {guid}}
	if feedGUID != "" {
		params.Set("podcastguid", feedGUID)
	}
	if err := c.get(ctx, "/episodes/byguid", params, &resp); err != nil {
		return nil, err
	}
	if resp.Episode == nil || resp.Episode.ID == 0 {
		return nil, fmt.Errorf("episode %s: %w", guid, ErrNotFound)
	}
	return resp.Episode, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build directory request: %w", err)
	}

	c.sign(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directory returned status %d for %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read directory response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode directory response: %w", err)
	}

	return nil
}

// sign adds the directory auth headers. The Authorization value is the hex
// SHA-1 of key+secret+timestamp and must be regenerated for every request.
func (c *Client) sign(req *http.Request) {
	ts := strconv.FormatInt(c.now().Unix(), 10)

	hash := sha1.Sum([]byte(c.apiKey + c.apiSecret + ts))

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Auth-Key", c.apiKey)
	req.Header.Set("X-Auth-Date", ts)
	req.Header.Set("Authorization", hex.EncodeToString(hash[:]))
}
