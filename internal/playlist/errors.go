package playlist

import "errors"

// Custom playlist service errors
var (
	// ErrPlaylistNotFound indicates the requested playlist is not registered
	ErrPlaylistNotFound = errors.New("playlist not found")

	// ErrDocumentFetch indicates the playlist XML document could not be fetched
	ErrDocumentFetch = errors.New("failed to fetch playlist document")

	// ErrDocumentParse indicates the playlist XML document could not be parsed at all
	ErrDocumentParse = errors.New("failed to parse playlist document")
)

// IsPlaylistNotFound checks if the error is a playlist not found error
func IsPlaylistNotFound(err error) bool {
	return errors.Is(err, ErrPlaylistNotFound)
}

// IsDocumentFetch checks if the error is a playlist document fetch error
func IsDocumentFetch(err error) bool {
	return errors.Is(err, ErrDocumentFetch)
}
