// package services defines the catalog and fetch collaborators of the offline engine
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/offline/internal/models"
)

// StatusTransientConflict is the transport status that means "try the same download again".
// Downloads that fail with it are retried until they succeed or the pass is cancelled.
const StatusTransientConflict = http.StatusConflict

// Catalog answers which tracks belong to favorites, albums and playlists.
//
// An error means the list could not be fetched; an empty slice means the list is empty.
type Catalog interface {
	// FavoriteTracks returns the tracks the user has favorited.
	FavoriteTracks(ctx context.Context) ([]models.Track, error)

	// AlbumTracks returns the tracks of an album in album order.
	AlbumTracks(ctx context.Context, albumID string) ([]models.Track, error)

	// PlaylistTracks returns the current tracks of a playlist in playlist order.
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)
}

// Fetcher retrieves track media.
type Fetcher interface {
	// ResolveDownloadURL returns where the media for track can be downloaded.
	// It returns an error wrapping [shared.ErrTrackUnavailable] when the track has no media.
	ResolveDownloadURL(ctx context.Context, track models.Track) (string, error)

	// Download streams the media at url into w.
	// A non-2xx response is returned as a [*StatusError].
	Download(ctx context.Context, url string, w io.Writer) error
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not a [*StatusError].
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsTransientConflict reports whether err is a [StatusTransientConflict] response.
func IsTransientConflict(err error) bool {
	return StatusCode(err) == StatusTransientConflict
}
