// Package services defines the [Catalog] and [Fetcher] interfaces the offline engine depends on and implements both
// in [HTTPService].
//
// # Streaming API
//
// [HTTPService] talks to a JSON REST API:
//   - GET /v1/me/favorites/tracks
//   - GET /v1/albums/{id}/tracks
//   - GET /v1/playlists/{id}/tracks
//   - GET /v1/tracks/{id}/stream returning {"url": "..."}
//
// Track lists are paged; a page carries "items" and an optional "next" link that is followed until empty.
// API requests carry a bearer token through [oauth2.StaticTokenSource] and are paced by a [rate.Limiter].
// Media downloads go through a separate client that sends no credentials, since stream URLs are pre-signed.
//
// # Error Handling
//
// Non-2xx responses are returned as [*StatusError]. Catalog failures wrap [shared.ErrCatalogFetch], missing media wraps
// [shared.ErrTrackUnavailable], and a body that breaks off mid-download wraps [shared.ErrDownloadFailed].
// [StatusTransientConflict] marks a download that should be retried as is.
package services
