// Package rss fetches and normalizes RSS feeds into catalog track data.
package rss

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// ParsedFeed is the normalized result of fetching a feed URL
type ParsedFeed struct {
	Title       string
	Description string
	Artist      string
	Image       string
	Items       []ParsedItem
}

// ParsedItem is one feed entry normalized for catalog insertion.
// Order in the Items slice follows document order.
type ParsedItem struct {
	GUID           string
	Title          string
	AudioURL       string
	Duration       int64
	Image          string
	PublishedAt    *time.Time
	ValueRecipient string
	ValueAmount    int64
}

// Parser fetches and parses RSS documents using gofeed
type Parser struct {
	parser *gofeed.Parser
}

// NewParser creates a new RSS parser
func NewParser() *Parser {
	return &Parser{
		parser: gofeed.NewParser(),
	}
}

// Fetch downloads and parses the feed at the given URL.
// Items without a GUID fall back to their enclosure URL as identity;
// items without any audio enclosure are skipped.
func (p *Parser) Fetch(ctx context.Context, url string) (*ParsedFeed, error) {
	feed, err := p.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", url, err)
	}

	parsed := &ParsedFeed{
		Title:       feed.Title,
		Description: feed.Description,
	}

	if feed.Image != nil {
		parsed.Image = feed.Image.URL
	}
	if feed.ITunesExt != nil {
		parsed.Artist = feed.ITunesExt.Author
		if parsed.Image == "" {
			parsed.Image = feed.ITunesExt.Image
		}
	}

	parsed.Items = make([]ParsedItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		normalized, ok := p.normalizeItem(item)
		if !ok {
			continue
		}
		parsed.Items = append(parsed.Items, normalized)
	}

	return parsed, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) (ParsedItem, bool) {
	normalized := ParsedItem{
		GUID:  item.GUID,
		Title: item.Title,
	}

	// RSS 2.0 allows a single enclosure per item; take the first audio one
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if enc.Type == "" || strings.HasPrefix(enc.Type, "audio/") {
			normalized.AudioURL = enc.URL
			break
		}
	}
	if normalized.AudioURL == "" {
		return ParsedItem{}, false
	}

	if normalized.GUID == "" {
		normalized.GUID = normalized.AudioURL
	}

	if item.PublishedParsed != nil {
		published := item.PublishedParsed.UTC()
		normalized.PublishedAt = &published
	}

	if item.ITunesExt != nil {
		normalized.Duration = parseDuration(item.ITunesExt.Duration)
		normalized.Image = item.ITunesExt.Image
	}
	if normalized.Image == "" && item.Image != nil {
		normalized.Image = item.Image.URL
	}

	normalized.ValueRecipient, normalized.ValueAmount = extractValueRecipient(item)

	return normalized, true
}

// extractValueRecipient pulls the first podcast:valueRecipient address and
// split out of the item's podcast namespace extensions, if present
func extractValueRecipient(item *gofeed.Item) (string, int64) {
	ns, ok := item.Extensions["podcast"]
	if !ok {
		return "", 0
	}
	for _, value := range ns["value"] {
		for _, recipient := range value.Children["valueRecipient"] {
			address := recipient.Attrs["address"]
			if address == "" {
				continue
			}
			split, _ := strconv.ParseInt(recipient.Attrs["split"], 10, 64)
			return address, split
		}
	}
	return "", 0
}

// parseDuration handles itunes duration values given either as plain seconds
// or as [HH:]MM:SS clock notation
func parseDuration(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	if !strings.Contains(raw, ":") {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0
		}
		return seconds
	}

	parts := strings.Split(raw, ":")
	var total int64
	for _, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
}
