package offline

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/offline/internal/models"
	"github.com/desertthunder/offline/internal/shared"
)

// Aggregate names, one persisted document each.
const (
	AggregateTracks         = "tracks"
	AggregateFavorites      = "favorites"
	AggregateAlbums         = "albums"
	AggregatePlaylists      = "playlists"
	AggregatePlaylistTracks = "playlist_tracks"
	AggregateSettings       = "settings"
)

var aggregates = []string{
	AggregateTracks,
	AggregateFavorites,
	AggregateAlbums,
	AggregatePlaylists,
	AggregatePlaylistTracks,
	AggregateSettings,
}

// Persister stores whole aggregates by name.
//
// Get returns an error wrapping [shared.ErrNotFound] for an aggregate that was never written.
type Persister interface {
	Get(name string) ([]byte, error)
	PutAll(docs map[string][]byte) error
}

// PinnedAlbum is an album the user keeps offline.
//
// Tracks is the streamable track list counted for the album; it is only meaningful once Attached is set.
type PinnedAlbum struct {
	Album    models.Album   `json:"album"`
	Tracks   []models.Track `json:"tracks,omitempty"`
	Attached bool           `json:"attached"`
}

// SyncResult reports how a diff changed reference counts.
type SyncResult struct {
	Added   int
	Removed int
}

// Changed reports whether any count moved.
func (r SyncResult) Changed() bool { return r.Added > 0 || r.Removed > 0 }

// Summary is a point-in-time view of the desired state.
type Summary struct {
	Tracks           int
	Favorites        int
	Albums           int
	PendingAlbums    int
	Playlists        int
	FavoritesEnabled bool
}

type settings struct {
	FavoritesEnabled bool `json:"favorites_enabled"`
}

// StoreOption configures a [Store] at open time.
type StoreOption func(*Store)

// WithFavoritesDefault sets the favorites-offline flag used when no settings were persisted yet.
func WithFavoritesDefault(enabled bool) StoreOption {
	return func(s *Store) { s.favoritesEnabled = enabled }
}

// Store holds the desired offline state: refcounted tracks, the favorites snapshot, pinned albums and playlists,
// and per-playlist snapshots.
//
// A single mutex serializes every mutation. Each mutation writes the aggregates it touched through the [Persister];
// a failed write leaves the in-memory change in place and returns an error wrapping [shared.ErrPersist].
type Store struct {
	mu        sync.Mutex
	persister Persister
	logger    *log.Logger

	tracks           *TrackSet
	favorites        []models.Track
	albums           []PinnedAlbum
	playlists        []models.Playlist
	playlistTracks   map[string][]models.Track
	favoritesEnabled bool
}

// Open creates a Store and restores every aggregate from p.
//
// Aggregates load independently: a missing or undecodable aggregate starts empty and never prevents the others
// from loading. A nil persister gives an in-memory store.
func Open(p Persister, logger *log.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	s := &Store{
		persister:      p,
		logger:         logger,
		tracks:         NewTrackSet(),
		playlistTracks: make(map[string][]models.Track),
	}
	for _, opt := range opts {
		opt(s)
	}

	if p == nil {
		return s
	}

	for _, name := range aggregates {
		data, err := p.Get(name)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn("failed to read aggregate, starting empty", "aggregate", name, "error", err)
			continue
		}
		if err := s.decode(name, data); err != nil {
			s.logger.Warn("failed to decode aggregate, starting empty", "aggregate", name, "error", err)
		}
	}
	return s
}

// decode restores one aggregate, leaving the default in place on error.
func (s *Store) decode(name string, data []byte) error {
	switch name {
	case AggregateTracks:
		tracks := NewTrackSet()
		if err := json.Unmarshal(data, tracks); err != nil {
			return err
		}
		s.tracks = tracks
	case AggregateFavorites:
		var favorites []models.Track
		if err := json.Unmarshal(data, &favorites); err != nil {
			return err
		}
		s.favorites = favorites
	case AggregateAlbums:
		var albums []PinnedAlbum
		if err := json.Unmarshal(data, &albums); err != nil {
			return err
		}
		s.albums = albums
	case AggregatePlaylists:
		var playlists []models.Playlist
		if err := json.Unmarshal(data, &playlists); err != nil {
			return err
		}
		s.playlists = playlists
	case AggregatePlaylistTracks:
		snapshots := make(map[string][]models.Track)
		if err := json.Unmarshal(data, &snapshots); err != nil {
			return err
		}
		s.playlistTracks = snapshots
	case AggregateSettings:
		var st settings
		if err := json.Unmarshal(data, &st); err != nil {
			return err
		}
		s.favoritesEnabled = st.FavoritesEnabled
	default:
		return fmt.Errorf("%w: unknown aggregate %s", shared.ErrInvalidInput, name)
	}
	return nil
}

// encode serializes one aggregate. Callers hold mu.
func (s *Store) encode(name string) ([]byte, error) {
	switch name {
	case AggregateTracks:
		return json.Marshal(s.tracks)
	case AggregateFavorites:
		return json.Marshal(nonNil(s.favorites))
	case AggregateAlbums:
		return json.Marshal(nonNil(s.albums))
	case AggregatePlaylists:
		return json.Marshal(nonNil(s.playlists))
	case AggregatePlaylistTracks:
		return json.Marshal(s.playlistTracks)
	case AggregateSettings:
		return json.Marshal(settings{FavoritesEnabled: s.favoritesEnabled})
	}
	return nil, fmt.Errorf("%w: unknown aggregate %s", shared.ErrInvalidInput, name)
}

// persist writes the named aggregates. Callers hold mu.
func (s *Store) persist(names ...string) error {
	if s.persister == nil {
		return nil
	}

	docs := make(map[string][]byte, len(names))
	for _, name := range names {
		data, err := s.encode(name)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", shared.ErrPersist, name, err)
		}
		docs[name] = data
	}

	if err := s.persister.PutAll(docs); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPersist, err)
	}
	return nil
}

// IncrementTracks adds one reference to each distinct track.
func (s *Store) IncrementTracks(tracks ...models.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracks.Add(tracks)
	return s.persist(AggregateTracks)
}

// DecrementTracks removes one reference from each distinct track. Tracks at or below zero are dropped silently.
func (s *Store) DecrementTracks(tracks ...models.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracks.Remove(tracks)
	return s.persist(AggregateTracks)
}

// SetFavoriteSnapshot replaces the favorites snapshot without touching reference counts.
// Only streamable tracks are kept, matching what [Store.SyncFavorites] counts.
func (s *Store) SetFavoriteSnapshot(tracks []models.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.favorites = models.StreamableTracks(tracks)
	return s.persist(AggregateFavorites)
}

// SyncFavorites diffs current against the favorites snapshot and applies the difference in one step.
//
// Newly favorited streamable tracks gain a reference, tracks no longer favorited lose one, and the snapshot becomes
// the counted subset of current. While favorites-offline is disabled current is treated as empty.
func (s *Store) SyncFavorites(current []models.Track) (SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.favoritesEnabled {
		current = nil
	}

	next, result := s.apply(s.favorites, current)
	s.favorites = next
	return result, s.persist(AggregateTracks, AggregateFavorites)
}

// SyncPlaylist diffs current against the snapshot for playlist id and applies the difference in one step.
//
// An unpinned playlist is treated as empty: every snapshot track loses its reference and the snapshot is removed.
func (s *Store) SyncPlaylist(id string, current []models.Track) (SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pinned := s.playlistIndex(id) >= 0
	if !pinned {
		current = nil
	}

	next, result := s.apply(s.playlistTracks[id], current)
	if pinned {
		s.playlistTracks[id] = next
	} else {
		delete(s.playlistTracks, id)
	}
	return result, s.persist(AggregateTracks, AggregatePlaylistTracks)
}

// apply moves reference counts from previous to the streamable subset of current and returns that subset.
// Callers hold mu.
func (s *Store) apply(previous, current []models.Track) ([]models.Track, SyncResult) {
	next := models.StreamableTracks(current)

	had := make(map[string]struct{}, len(previous))
	for _, t := range previous {
		had[t.ID] = struct{}{}
	}
	has := make(map[string]struct{}, len(next))
	for _, t := range next {
		has[t.ID] = struct{}{}
	}

	var added, removed []models.Track
	for _, t := range next {
		if _, ok := had[t.ID]; !ok {
			added = append(added, t)
		}
	}
	for _, t := range models.UniqueTracks(previous) {
		if _, ok := has[t.ID]; !ok {
			removed = append(removed, t)
		}
	}

	s.tracks.Add(added)
	s.tracks.Remove(removed)
	return next, SyncResult{Added: len(added), Removed: len(removed)}
}

// PinAlbum reserves a pin for album. It returns false when the album is already pinned.
//
// The album's tracks are counted later by [Store.AttachAlbumTracks].
func (s *Store) PinAlbum(album models.Album) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.albumIndex(album.ID) >= 0 {
		return false, nil
	}
	s.albums = append(s.albums, PinnedAlbum{Album: album})
	return true, s.persist(AggregateAlbums)
}

// AttachAlbumTracks counts the streamable subset of tracks for a pinned album that has none attached yet.
//
// It returns false, changing nothing, when the album was unpinned or already attached in the meantime.
func (s *Store) AttachAlbumTracks(id string, tracks []models.Track) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.albumIndex(id)
	if i < 0 || s.albums[i].Attached {
		return false, nil
	}

	counted := models.StreamableTracks(tracks)
	s.tracks.Add(counted)
	s.albums[i].Tracks = counted
	s.albums[i].Attached = true
	return true, s.persist(AggregateTracks, AggregateAlbums)
}

// UnpinAlbum releases the references held by a pinned album and forgets it. It returns false when not pinned.
func (s *Store) UnpinAlbum(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.albumIndex(id)
	if i < 0 {
		return false, nil
	}

	if s.albums[i].Attached {
		s.tracks.Remove(s.albums[i].Tracks)
	}
	s.albums = slices.Delete(s.albums, i, i+1)
	return true, s.persist(AggregateTracks, AggregateAlbums)
}

// PinPlaylist marks playlist as pinned. It returns false when already pinned.
func (s *Store) PinPlaylist(playlist models.Playlist) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playlistIndex(playlist.ID) >= 0 {
		return false, nil
	}
	s.playlists = append(s.playlists, playlist)
	return true, s.persist(AggregatePlaylists)
}

// UnpinPlaylist unmarks a playlist. Its references are released by the next [Store.SyncPlaylist].
// It returns false when not pinned.
func (s *Store) UnpinPlaylist(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.playlistIndex(id)
	if i < 0 {
		return false, nil
	}
	s.playlists = slices.Delete(s.playlists, i, i+1)
	return true, s.persist(AggregatePlaylists)
}

// SetPlaylistSnapshot replaces the snapshot for playlist id without touching reference counts.
// A nil list removes the snapshot. Only streamable tracks are kept.
func (s *Store) SetPlaylistSnapshot(id string, tracks []models.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tracks == nil {
		delete(s.playlistTracks, id)
	} else {
		s.playlistTracks[id] = models.StreamableTracks(tracks)
	}
	return s.persist(AggregatePlaylistTracks)
}

// SetFavoritesEnabled persists the favorites-offline flag.
func (s *Store) SetFavoritesEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.favoritesEnabled = enabled
	return s.persist(AggregateSettings)
}

// Clear empties every aggregate and disables favorites-offline.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracks.Clear()
	s.favorites = nil
	s.albums = nil
	s.playlists = nil
	s.playlistTracks = make(map[string][]models.Track)
	s.favoritesEnabled = false
	return s.persist(aggregates...)
}

// DesiredTracks returns every track with a count of at least 1, ordered by ID.
func (s *Store) DesiredTracks() []models.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracks.Tracks()
}

// Contains reports whether the track is currently desired.
func (s *Store) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracks.Contains(id)
}

// Count returns the reference count of the track.
func (s *Store) Count(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracks.Count(id)
}

// FavoriteSnapshot returns a copy of the favorites snapshot.
func (s *Store) FavoriteSnapshot() []models.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.favorites)
}

// PlaylistSnapshot returns a copy of the snapshot for playlist id.
func (s *Store) PlaylistSnapshot(id string) []models.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.playlistTracks[id])
}

// UnpinnedSnapshots returns, sorted, the IDs of playlists that still hold references but are no longer pinned.
// Their release was scheduled in a process that stopped before the playlist loop ran.
func (s *Store) UnpinnedSnapshots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id := range s.playlistTracks {
		if s.playlistIndex(id) < 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Albums returns the pinned albums in pin order.
func (s *Store) Albums() []PinnedAlbum {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PinnedAlbum, len(s.albums))
	for i, a := range s.albums {
		a.Tracks = slices.Clone(a.Tracks)
		out[i] = a
	}
	return out
}

// Playlists returns the pinned playlists in pin order.
func (s *Store) Playlists() []models.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.playlists)
}

func (s *Store) IsAlbumPinned(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.albumIndex(id) >= 0
}

func (s *Store) IsPlaylistPinned(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playlistIndex(id) >= 0
}

func (s *Store) FavoritesEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favoritesEnabled
}

// Summary returns aggregate counts for status reporting.
func (s *Store) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := 0
	for _, a := range s.albums {
		if !a.Attached {
			pending++
		}
	}
	return Summary{
		Tracks:           s.tracks.Len(),
		Favorites:        len(s.favorites),
		Albums:           len(s.albums),
		PendingAlbums:    pending,
		Playlists:        len(s.playlists),
		FavoritesEnabled: s.favoritesEnabled,
	}
}

func (s *Store) albumIndex(id string) int {
	return slices.IndexFunc(s.albums, func(a PinnedAlbum) bool { return a.Album.ID == id })
}

func (s *Store) playlistIndex(id string) int {
	return slices.IndexFunc(s.playlists, func(p models.Playlist) bool { return p.ID == id })
}

// nonNil keeps empty aggregates encoded as [] rather than null
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
