package playlist

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
)

const (
	episodeMarkerPrefix = "Episode:"
	maxSlugLength       = 64
)

// Document is the parsed form of a remote playlist XML document
type Document struct {
	Title             string
	Description       string
	ArtworkURL        string
	Items             []ReferenceItem
	Episodes          []EpisodeGroup
	Ungrouped         []ReferenceItem
	HasEpisodeMarkers bool
}

// ParseDocument scans playlist XML once, in document order, collecting
// remote-item references and episode-marker boundaries. Remote items with
// missing GUID attributes are skipped; a marker opens a new episode group and
// claims every remote item until the next marker. Items before the first
// marker (or all items when no marker exists) land in the ungrouped bucket.
//
// Truncated or partially corrupt documents yield whatever parsed cleanly;
// only documents producing no tokens at all are an error.
func ParseDocument(data []byte) (*Document, error) {
	doc := &Document{}
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false

	var (
		current  *EpisodeGroup
		path     []string
		scanned  bool
		position int
	)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if scanned {
				break
			}
			return nil, err
		}
		scanned = true

		switch t := token.(type) {
		case xml.StartElement:
			path = append(path, t.Name.Local)

			switch t.Name.Local {
			case "remoteItem":
				item, ok := remoteItemFromAttrs(t.Attr, position)
				if !ok {
					continue
				}
				if current != nil {
					item.EpisodeID = current.ID
					item.EpisodeTitle = current.Title
					current.Items = append(current.Items, item)
				} else {
					doc.Ungrouped = append(doc.Ungrouped, item)
				}
				doc.Items = append(doc.Items, item)
				position++

			case "marker", "episodeMarker":
				title := strings.TrimSpace(readElementText(decoder))
				path = path[:len(path)-1] // readElementText consumed the end tag
				if title != "" {
					doc.startEpisode(&current, title)
				}

			case "url":
				if doc.ArtworkURL == "" && pathEndsWith(path, "image", "url") {
					doc.ArtworkURL = strings.TrimSpace(readElementText(decoder))
					path = path[:len(path)-1]
				}

			case "title":
				// Accept both bare playlist documents and rss/channel wrapping
				if doc.Title == "" && len(path) <= 3 {
					doc.Title = strings.TrimSpace(readElementText(decoder))
					path = path[:len(path)-1]
				}

			case "description":
				if doc.Description == "" && len(path) <= 3 {
					doc.Description = strings.TrimSpace(readElementText(decoder))
					path = path[:len(path)-1]
				}
			}

		case xml.EndElement:
			if len(path) > 0 {
				path = path[:len(path)-1]
			}

		case xml.CharData:
			// A labeled text block also counts as an episode marker
			text := strings.TrimSpace(string(t))
			if strings.HasPrefix(text, episodeMarkerPrefix) {
				title := strings.TrimSpace(strings.TrimPrefix(text, episodeMarkerPrefix))
				if title != "" {
					doc.startEpisode(&current, title)
				}
			}
		}
	}

	if !scanned {
		return nil, io.ErrUnexpectedEOF
	}

	return doc, nil
}

// startEpisode closes the current episode group and opens a new one
func (d *Document) startEpisode(current **EpisodeGroup, title string) {
	d.HasEpisodeMarkers = true
	d.Episodes = append(d.Episodes, EpisodeGroup{
		ID:    Slugify(title),
		Title: title,
	})
	*current = &d.Episodes[len(d.Episodes)-1]
}

// remoteItemFromAttrs builds a ReferenceItem from a remote-item element's
// attributes; both GUIDs are required, anything less skips the item
func remoteItemFromAttrs(attrs []xml.Attr, position int) (ReferenceItem, bool) {
	var item ReferenceItem
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "feedGuid":
			item.FeedGUID = strings.TrimSpace(attr.Value)
		case "itemGuid":
			item.ItemGUID = strings.TrimSpace(attr.Value)
		}
	}
	if item.FeedGUID == "" || item.ItemGUID == "" {
		return ReferenceItem{}, false
	}
	item.Position = position
	return item, true
}

// readElementText consumes tokens until the current element's end tag and
// returns the accumulated character data
func readElementText(decoder *xml.Decoder) string {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := token.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			sb.Write(t)
		}
	}
	return sb.String()
}

// pathEndsWith checks whether the element path ends with the given suffix
func pathEndsWith(path []string, suffix ...string) bool {
	if len(path) < len(suffix) {
		return false
	}
	offset := len(path) - len(suffix)
	for i, name := range suffix {
		if path[offset+i] != name {
			return false
		}
	}
	return true
}

// Slugify derives a deterministic grouping id from an episode title:
// lower-cased, non-alphanumeric runs collapsed to '-', truncated.
// Repeat parses of the same document always produce the same id.
func Slugify(title string) string {
	var sb strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
		if sb.Len() >= maxSlugLength {
			break
		}
	}
	return strings.Trim(sb.String(), "-")
}
