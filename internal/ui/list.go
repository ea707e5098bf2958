package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/offline/internal/models"
	"github.com/desertthunder/offline/internal/offline"
)

var (
	_ list.Item = albumItem{}
	_ list.Item = playlistItem{}
)

// albumItem wraps [offline.PinnedAlbum] to implement [list.Item].
type albumItem struct {
	album offline.PinnedAlbum
}

func (i albumItem) FilterValue() string { return i.album.Album.Title }
func (i albumItem) Title() string {
	if i.album.Album.Title == "" {
		return "Album " + i.album.Album.ID
	}
	return i.album.Album.Title
}
func (i albumItem) Description() string {
	if !i.album.Attached {
		return "album • fetching tracks"
	}
	desc := fmt.Sprintf("album • %d tracks", len(i.album.Tracks))
	if i.album.Album.Artist != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.album.Album.Artist)
	}
	return desc
}

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
	tracks   int
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string {
	if i.playlist.Name == "" {
		return "Playlist " + i.playlist.ID
	}
	return i.playlist.Name
}
func (i playlistItem) Description() string { return fmt.Sprintf("playlist • %d tracks", i.tracks) }
