package models

// Track is a single downloadable item. Two tracks are the same track when their IDs match.
type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist,omitempty"`
	Album      string `json:"album,omitempty"`
	Duration   int    `json:"duration,omitempty"` // seconds
	Streamable bool   `json:"streamable"`
}

// Album groups tracks; pinning one keeps all of its streamable tracks offline.
type Album struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist,omitempty"`
}

// Playlist is a user-curated, mutable track list.
type Playlist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UniqueTracks returns tracks with duplicate IDs removed, keeping the first occurrence and the input order.
func UniqueTracks(tracks []Track) []Track {
	seen := make(map[string]struct{}, len(tracks))
	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

// StreamableTracks returns the de-duplicated subset of tracks that can be downloaded.
func StreamableTracks(tracks []Track) []Track {
	out := make([]Track, 0, len(tracks))
	for _, t := range UniqueTracks(tracks) {
		if t.Streamable {
			out = append(out, t)
		}
	}
	return out
}

// TrackIDs returns the IDs of tracks in order.
func TrackIDs(tracks []Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}
