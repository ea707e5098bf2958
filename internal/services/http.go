// Streaming API [Catalog] and [Fetcher] implementation
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/offline/internal/models"
	"github.com/desertthunder/offline/internal/shared"
)

const defaultBaseURL string = "http://localhost:8080"

// maxPages bounds pagination so a server that keeps returning "next" cannot stall a pass forever.
const maxPages = 1000

// APITrack is a track as returned by the streaming API.
type APITrack struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	DurationSec int    `json:"duration_seconds"`
	Streamable  bool   `json:"streamable"`
}

func (t APITrack) toModel() models.Track {
	return models.Track{
		ID:         t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		Album:      t.Album,
		Duration:   t.DurationSec,
		Streamable: t.Streamable,
	}
}

type trackPage struct {
	Items []APITrack `json:"items"`
	Next  string     `json:"next"`
}

type streamResponse struct {
	URL string `json:"url"`
}

// HTTPService implements [Catalog] and [Fetcher] against the streaming API.
type HTTPService struct {
	baseURL        string
	httpClient     *http.Client
	downloadClient *http.Client
	limiter        *rate.Limiter
}

// NewHTTPService creates a service from cfg.
//
// A non-empty access token is attached to API requests as a bearer token.
// A non-positive request rate disables pacing.
func NewHTTPService(cfg shared.ServiceConfig) *HTTPService {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := &http.Client{}
	if cfg.AccessToken != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
		client = oauth2.NewClient(context.Background(), src)
	}
	client.Timeout = cfg.Timeout.Duration

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	// Bounds only the wait for response headers; media bodies may stream for a long time.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout.Duration

	return &HTTPService{
		baseURL:        baseURL,
		httpClient:     client,
		downloadClient: &http.Client{Transport: transport},
		limiter:        rate.NewLimiter(limit, 1),
	}
}

// Name returns the service name.
func (h *HTTPService) Name() string {
	return "streaming API"
}

// doRequest performs a paced GET against the API and decodes the JSON body into result.
func (h *HTTPService) doRequest(ctx context.Context, endpoint string, result any) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return err
	}

	apiURL, err := h.resolve(endpoint)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// resolve returns the absolute URL for endpoint. Absolute links must point at the API host.
func (h *HTTPService) resolve(endpoint string) (string, error) {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return h.baseURL + endpoint, nil
	}

	base, err := url.Parse(h.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", h.baseURL, err)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid link %q: %w", endpoint, err)
	}
	if u.Scheme != base.Scheme || u.Host != base.Host {
		return "", fmt.Errorf("%w: link to %s is outside %s", shared.ErrInvalidInput, u.Host, base.Host)
	}
	return endpoint, nil
}

// tracks follows the paged track list starting at endpoint.
func (h *HTTPService) tracks(ctx context.Context, endpoint string) ([]models.Track, error) {
	tracks := []models.Track{}
	for page := 0; endpoint != ""; page++ {
		if page == maxPages {
			return nil, fmt.Errorf("too many pages at %s", endpoint)
		}

		var p trackPage
		if err := h.doRequest(ctx, endpoint, &p); err != nil {
			return nil, err
		}
		for _, t := range p.Items {
			tracks = append(tracks, t.toModel())
		}
		endpoint = p.Next
	}
	return tracks, nil
}

// FavoriteTracks retrieves the favorited tracks.
//
// Calls GET /v1/me/favorites/tracks.
func (h *HTTPService) FavoriteTracks(ctx context.Context) ([]models.Track, error) {
	tracks, err := h.tracks(ctx, "/v1/me/favorites/tracks")
	if err != nil {
		return nil, fmt.Errorf("%w: favorites: %w", shared.ErrCatalogFetch, err)
	}
	return tracks, nil
}

// AlbumTracks retrieves the tracks of an album.
//
// Calls GET /v1/albums/{id}/tracks.
func (h *HTTPService) AlbumTracks(ctx context.Context, albumID string) ([]models.Track, error) {
	if albumID == "" {
		return nil, fmt.Errorf("%w: album ID", shared.ErrMissingArgument)
	}

	tracks, err := h.tracks(ctx, "/v1/albums/"+url.PathEscape(albumID)+"/tracks")
	if err != nil {
		return nil, fmt.Errorf("%w: album %s: %w", shared.ErrCatalogFetch, albumID, err)
	}
	return tracks, nil
}

// PlaylistTracks retrieves the current tracks of a playlist.
//
// Calls GET /v1/playlists/{id}/tracks.
func (h *HTTPService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist ID", shared.ErrMissingArgument)
	}

	tracks, err := h.tracks(ctx, "/v1/playlists/"+url.PathEscape(playlistID)+"/tracks")
	if err != nil {
		return nil, fmt.Errorf("%w: playlist %s: %w", shared.ErrCatalogFetch, playlistID, err)
	}
	return tracks, nil
}

// ResolveDownloadURL asks the API where the media for track lives.
//
// Calls GET /v1/tracks/{id}/stream. A 404 or 410 response, or an empty URL, means the track is unavailable.
func (h *HTTPService) ResolveDownloadURL(ctx context.Context, track models.Track) (string, error) {
	var resp streamResponse
	err := h.doRequest(ctx, "/v1/tracks/"+url.PathEscape(track.ID)+"/stream", &resp)
	switch code := StatusCode(err); {
	case code == http.StatusNotFound || code == http.StatusGone:
		return "", fmt.Errorf("%w: %s: %w", shared.ErrTrackUnavailable, track.ID, err)
	case err != nil:
		return "", fmt.Errorf("failed to resolve %s: %w", track.ID, err)
	case resp.URL == "":
		return "", fmt.Errorf("%w: %s: no stream URL", shared.ErrTrackUnavailable, track.ID)
	}
	return resp.URL, nil
}

// Download streams the media at mediaURL into w.
func (h *HTTPService) Download(ctx context.Context, mediaURL string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.downloadClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrDownloadFailed, err)
	}
	return nil
}

func statusError(resp *http.Response) *StatusError {
	var errResp struct {
		Detail string `json:"detail"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&errResp)
	return &StatusError{Code: resp.StatusCode, Detail: errResp.Detail}
}
