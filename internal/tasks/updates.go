package tasks

import (
	"fmt"

	"github.com/desertthunder/offline/internal/models"
)

// ProgressUpdate represents a progress event during a reconciliation pass.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Loop    string // Loop that produced the update
	Phase   Phase  // Pass phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Pass phase enumeration
type Phase int

const (
	Plan Phase = iota
	Delete
	Download
	Retry
	FetchFavorites
	FetchPlaylist
	FetchAlbum
	Complete
)

func (p Phase) String() string {
	switch p {
	case Plan:
		return "plan"
	case Delete:
		return "delete"
	case Download:
		return "download"
	case Retry:
		return "retry"
	case FetchFavorites:
		return "fetch_favorites"
	case FetchPlaylist:
		return "fetch_playlist"
	case FetchAlbum:
		return "fetch_album"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// Channel full, skip this update
	}
}

func planUpdate(toRemove, toAdd int) ProgressUpdate {
	return ProgressUpdate{
		Loop:    LoopTracks,
		Phase:   Plan,
		Total:   toRemove + toAdd,
		Message: fmt.Sprintf("%d to delete, %d to download", toRemove, toAdd),
	}
}

func deleteUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Loop:    LoopTracks,
		Phase:   Delete,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Deleted %s", step, total, id),
	}
}

func downloadUpdate(step, total int, tr models.Track) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] %s", step, total, tr.Title)
	if tr.Artist != "" {
		msg = fmt.Sprintf("[%d/%d] %s - %s", step, total, tr.Artist, tr.Title)
	}
	return ProgressUpdate{
		Loop:    LoopTracks,
		Phase:   Download,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    tr,
	}
}

func downloadFailedUpdate(step, total int, tr models.Track, err error) ProgressUpdate {
	return ProgressUpdate{
		Loop:    LoopTracks,
		Phase:   Download,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, tr.ID, err),
		Data:    tr,
	}
}

func retryUpdate(tr models.Track, attempt int) ProgressUpdate {
	return ProgressUpdate{
		Loop:    LoopTracks,
		Phase:   Retry,
		Step:    attempt,
		Message: fmt.Sprintf("Retrying %s (attempt %d)...", tr.ID, attempt+1),
		Data:    tr,
	}
}

func fetchFavoritesUpdate() ProgressUpdate {
	return ProgressUpdate{
		Loop:    LoopFavorites,
		Phase:   FetchFavorites,
		Message: "Fetching favorites...",
	}
}

func fetchPlaylistUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Loop:    LoopPlaylists,
		Phase:   FetchPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching playlist %s...", step, total, id),
	}
}

func fetchAlbumUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Loop:    LoopAlbums,
		Phase:   FetchAlbum,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching album %s...", step, total, id),
	}
}

func completeUpdate(loop string, pass *models.Pass) ProgressUpdate {
	return ProgressUpdate{
		Loop:  loop,
		Phase: Complete,
		Message: fmt.Sprintf("%s pass done: %d deleted, %d downloaded, %d failed",
			loop, pass.Deleted(), pass.Downloaded(), pass.Failed()),
		Data: pass,
	}
}
