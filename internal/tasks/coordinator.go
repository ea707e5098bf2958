package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/offline/internal/models"
	"github.com/desertthunder/offline/internal/offline"
	"github.com/desertthunder/offline/internal/services"
	"github.com/desertthunder/offline/internal/shared"
)

// Option configures a [Coordinator].
type Option func(*Coordinator)

// WithOnChange sets the hook invoked from loop workers after every step that changes the disk or the desired state.
// It must not block.
func WithOnChange(fn func()) Option {
	return func(c *Coordinator) { c.onChange = fn }
}

// WithProgress sets a channel receiving [ProgressUpdate]s. Updates are dropped when the channel is full.
func WithProgress(ch chan<- ProgressUpdate) Option {
	return func(c *Coordinator) { c.progress = ch }
}

// WithReporter sets the sink for errors handled inside loop workers.
func WithReporter(r shared.Reporter) Option {
	return func(c *Coordinator) { c.reporter = r }
}

// WithHistory records every pass through r.
func WithHistory(r PassRecorder) Option {
	return func(c *Coordinator) { c.history = r }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithRetryDelay sets the pause between download attempts that hit a transient conflict.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.retryDelay = d }
}

// WithRefreshInterval refreshes favorites and pinned playlists every d while [Coordinator.Start] runs. 0 disables.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.refreshInterval = d }
}

// Status is a point-in-time report of the desired state against the disk.
type Status struct {
	offline.Summary
	OnDisk           int
	PendingDownloads int
	Orphans          int
	Bytes            int64
	PinnedAlbums     []offline.PinnedAlbum
	PinnedPlaylists  []models.Playlist
	PlaylistTracks   map[string]int
	Loops            map[string]LoopState
	QueuedPlaylists  int
	QueuedAlbums     int
}

// Converged reports whether the disk holds exactly the desired tracks.
func (s Status) Converged() bool {
	return s.PendingDownloads == 0 && s.Orphans == 0
}

// Coordinator is the public face of the engine. Its methods mutate the [offline.Store] and schedule loop work;
// they never perform network or directory I/O themselves and are safe to call from any goroutine.
type Coordinator struct {
	store   *offline.Store
	disk    *offline.Disk
	catalog services.Catalog
	fetcher services.Fetcher

	reporter        shared.Reporter
	history         PassRecorder
	logger          *log.Logger
	onChange        func()
	progress        chan<- ProgressUpdate
	retryDelay      time.Duration
	refreshInterval time.Duration

	tracks    *Loop
	favorites *Loop
	playlists *Loop
	albums    *Loop

	playlistQueue *Queue
	albumQueue    *Queue
}

// NewCoordinator wires the loops around store and disk. Call [Coordinator.Start] to run them.
func NewCoordinator(store *offline.Store, disk *offline.Disk, catalog services.Catalog, fetcher services.Fetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:         store,
		disk:          disk,
		catalog:       catalog,
		fetcher:       fetcher,
		retryDelay:    time.Second,
		playlistQueue: NewQueue(),
		albumQueue:    NewQueue(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = shared.NewLogger(nil)
	}
	if c.reporter == nil {
		c.reporter = shared.NewLogReporter(c.logger)
	}

	trackSync := &TrackSync{
		store:      store,
		disk:       disk,
		fetcher:    fetcher,
		reporter:   c.reporter,
		logger:     shared.WithLogger(c.logger, "component", LoopTracks),
		notify:     c.notify,
		progress:   c.progress,
		retryDelay: c.retryDelay,
	}
	c.tracks = NewLoop(LoopTracks, trackSync.Pass, c.history, c.reporter, c.logger)

	favoritesSync := &FavoritesSync{
		store:    store,
		catalog:  catalog,
		tracks:   c.tracks,
		reporter: c.reporter,
		logger:   shared.WithLogger(c.logger, "component", LoopFavorites),
		notify:   c.notify,
		progress: c.progress,
	}
	c.favorites = NewLoop(LoopFavorites, favoritesSync.Pass, c.history, c.reporter, c.logger)

	playlistSync := &PlaylistSync{
		store:    store,
		catalog:  catalog,
		queue:    c.playlistQueue,
		tracks:   c.tracks,
		reporter: c.reporter,
		logger:   shared.WithLogger(c.logger, "component", LoopPlaylists),
		notify:   c.notify,
		progress: c.progress,
	}
	c.playlists = NewLoop(LoopPlaylists, playlistSync.Pass, c.history, c.reporter, c.logger)

	albumSync := &AlbumSync{
		store:    store,
		catalog:  catalog,
		queue:    c.albumQueue,
		tracks:   c.tracks,
		reporter: c.reporter,
		logger:   shared.WithLogger(c.logger, "component", LoopAlbums),
		notify:   c.notify,
		progress: c.progress,
	}
	c.albums = NewLoop(LoopAlbums, albumSync.Pass, c.history, c.reporter, c.logger)

	return c
}

func (c *Coordinator) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}

func (c *Coordinator) loops() []*Loop {
	return []*Loop{c.favorites, c.playlists, c.albums, c.tracks}
}

// Start runs every loop until ctx is done.
//
// On start it removes temp files from interrupted downloads and re-queues albums whose tracks were never attached
// along with unpinned playlists that still hold references. A track pass then converges the disk on the
// persisted state.
func (c *Coordinator) Start(ctx context.Context) error {
	if n, err := c.disk.CleanTemp(); err != nil {
		c.reporter.Report("temp cleanup failed", err.Error())
	} else if n > 0 {
		c.logger.Info("removed interrupted downloads", "count", n)
	}

	c.resumeAlbums()
	c.resumeReleases()
	c.tracks.Request()

	g, ctx := errgroup.WithContext(ctx)
	for _, l := range c.loops() {
		g.Go(func() error { return l.Run(ctx) })
	}
	if c.refreshInterval > 0 {
		g.Go(func() error { return c.refreshEvery(ctx, c.refreshInterval) })
	}
	return g.Wait()
}

func (c *Coordinator) refreshEvery(ctx context.Context, d time.Duration) error {
	ticker := time.NewTicker(d)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.logger.Debug("periodic refresh")
			c.Refresh()
		}
	}
}

// AddTracks keeps the streamable subset of tracks offline, one reference each.
func (c *Coordinator) AddTracks(tracks ...models.Track) error {
	streamable := models.StreamableTracks(tracks)
	if len(streamable) == 0 {
		return nil
	}

	err := c.store.IncrementTracks(streamable...)
	c.tracks.Request()
	return err
}

// RemoveTracks releases one reference from each streamable track.
func (c *Coordinator) RemoveTracks(tracks ...models.Track) error {
	streamable := models.StreamableTracks(tracks)
	if len(streamable) == 0 {
		return nil
	}

	err := c.store.DecrementTracks(streamable...)
	c.tracks.Request()
	return err
}

// PinAlbum keeps an album offline. Pinning an already pinned album does nothing.
// The album's tracks are fetched and counted by the album loop.
func (c *Coordinator) PinAlbum(album models.Album) error {
	if album.ID == "" {
		return fmt.Errorf("%w: album ID", shared.ErrMissingArgument)
	}

	added, err := c.store.PinAlbum(album)
	if !added {
		return err
	}
	c.albumQueue.Push(album.ID)
	c.albums.Request()
	return err
}

// UnpinAlbum releases the album's references.
func (c *Coordinator) UnpinAlbum(id string) error {
	c.albumQueue.Remove(id)
	removed, err := c.store.UnpinAlbum(id)
	if removed {
		c.tracks.Request()
	}
	return err
}

// PinPlaylist keeps a playlist offline and schedules a fetch of its tracks.
func (c *Coordinator) PinPlaylist(playlist models.Playlist) error {
	if playlist.ID == "" {
		return fmt.Errorf("%w: playlist ID", shared.ErrMissingArgument)
	}

	added, err := c.store.PinPlaylist(playlist)
	if added {
		c.playlistQueue.Push(playlist.ID)
		c.playlists.Request()
	}
	return err
}

// UnpinPlaylist unmarks a playlist; the playlist loop releases its references.
func (c *Coordinator) UnpinPlaylist(id string) error {
	removed, err := c.store.UnpinPlaylist(id)
	if removed {
		c.playlistQueue.Push(id)
		c.playlists.Request()
	}
	return err
}

// SetFavoritesOfflineEnabled turns favorites-offline on or off and schedules a favorites pass.
// Disabling releases every favorites reference.
func (c *Coordinator) SetFavoritesOfflineEnabled(enabled bool) error {
	err := c.store.SetFavoritesEnabled(enabled)
	c.favorites.Request()
	return err
}

// FavoritesOfflineEnabled reports the favorites-offline flag.
func (c *Coordinator) FavoritesOfflineEnabled() bool {
	return c.store.FavoritesEnabled()
}

// RemoveAll cancels all loop work, clears the desired state and schedules a final track pass that deletes every
// offline file. Favorites-offline is disabled.
func (c *Coordinator) RemoveAll() error {
	for _, l := range c.loops() {
		l.Cancel()
	}
	c.playlistQueue.Clear()
	c.albumQueue.Clear()

	err := c.store.Clear()
	c.disk.Invalidate()
	c.tracks.Request()
	c.notify()
	return err
}

// Refresh schedules a favorites pass, a re-fetch of every pinned playlist and a retry of unattached albums.
func (c *Coordinator) Refresh() {
	c.favorites.Request()

	for _, p := range c.store.Playlists() {
		c.playlistQueue.Push(p.ID)
	}
	c.resumeReleases()
	c.playlists.Request()

	c.resumeAlbums()
}

// resumeReleases queues unpinned playlists whose references were never released.
func (c *Coordinator) resumeReleases() {
	ids := c.store.UnpinnedSnapshots()
	for _, id := range ids {
		c.playlistQueue.Push(id)
	}
	if len(ids) > 0 {
		c.playlists.Request()
	}
}

// resumeAlbums queues every pinned album without attached tracks.
func (c *Coordinator) resumeAlbums() {
	queued := false
	for _, a := range c.store.Albums() {
		if !a.Attached {
			c.albumQueue.Push(a.Album.ID)
			queued = true
		}
	}
	if queued {
		c.albums.Request()
	}
}

// RequestSync schedules a track pass.
func (c *Coordinator) RequestSync() {
	c.tracks.Request()
}

// WaitIdle blocks until every loop is idle at the same time, or ctx is done.
func (c *Coordinator) WaitIdle(ctx context.Context) error {
	for {
		for _, l := range c.loops() {
			if err := l.WaitIdle(ctx); err != nil {
				return err
			}
		}

		idle := true
		for _, l := range c.loops() {
			if l.State() != Idle {
				idle = false
				break
			}
		}
		if idle {
			return nil
		}
	}
}

// Status compares the desired state with the disk.
func (c *Coordinator) Status() (Status, error) {
	st := Status{
		Summary:         c.store.Summary(),
		PinnedAlbums:    c.store.Albums(),
		PinnedPlaylists: c.store.Playlists(),
		Loops:           make(map[string]LoopState, 4),
		QueuedPlaylists: c.playlistQueue.Len(),
		QueuedAlbums:    c.albumQueue.Len(),
	}
	for _, l := range c.loops() {
		st.Loops[l.Name()] = l.State()
	}
	st.PlaylistTracks = make(map[string]int, len(st.PinnedPlaylists))
	for _, p := range st.PinnedPlaylists {
		st.PlaylistTracks[p.ID] = len(c.store.PlaylistSnapshot(p.ID))
	}

	onDisk, err := c.disk.TrackIDs()
	if err != nil {
		return st, err
	}
	st.OnDisk = len(onDisk)

	for _, t := range c.store.DesiredTracks() {
		if _, ok := onDisk[t.ID]; ok {
			delete(onDisk, t.ID)
			continue
		}
		st.PendingDownloads++
	}
	st.Orphans = len(onDisk)

	if st.Bytes, err = c.disk.Size(); err != nil {
		return st, err
	}
	return st, nil
}

// Store returns the desired-state store.
func (c *Coordinator) Store() *offline.Store { return c.store }
