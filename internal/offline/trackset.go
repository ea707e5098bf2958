package offline

import (
	"encoding/json"
	"sort"

	"github.com/desertthunder/offline/internal/models"
)

// RefCount is a desired track and the number of independent reasons keeping it offline.
type RefCount struct {
	Track models.Track `json:"track"`
	Count int          `json:"count"`
}

// TrackSet is a reference-counted set of tracks.
//
// A track is present iff its count is at least 1. Counts only change through [TrackSet.Add] and [TrackSet.Remove].
// TrackSet is not safe for concurrent use; [Store] guards it.
type TrackSet struct {
	entries map[string]*RefCount
}

// NewTrackSet creates an empty TrackSet
func NewTrackSet() *TrackSet {
	return &TrackSet{entries: make(map[string]*RefCount)}
}

// Add increments each distinct track by one. Duplicate IDs in tracks count once.
func (s *TrackSet) Add(tracks []models.Track) {
	for _, t := range models.UniqueTracks(tracks) {
		if e, ok := s.entries[t.ID]; ok {
			e.Count++
			continue
		}
		s.entries[t.ID] = &RefCount{Track: t, Count: 1}
	}
}

// Remove decrements each distinct track by one, dropping tracks that reach zero.
// Removing an absent track is a no-op.
func (s *TrackSet) Remove(tracks []models.Track) {
	for _, t := range models.UniqueTracks(tracks) {
		e, ok := s.entries[t.ID]
		if !ok {
			continue
		}
		if e.Count--; e.Count < 1 {
			delete(s.entries, t.ID)
		}
	}
}

// Count returns the reference count for id, 0 when absent.
func (s *TrackSet) Count(id string) int {
	if e, ok := s.entries[id]; ok {
		return e.Count
	}
	return 0
}

// Contains reports whether id has a count of at least 1.
func (s *TrackSet) Contains(id string) bool {
	_, ok := s.entries[id]
	return ok
}

// Len returns the number of distinct desired tracks.
func (s *TrackSet) Len() int { return len(s.entries) }

// Tracks returns the desired tracks ordered by ID.
func (s *TrackSet) Tracks() []models.Track {
	out := make([]models.Track, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Track)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clear removes every track.
func (s *TrackSet) Clear() {
	s.entries = make(map[string]*RefCount)
}

func (s *TrackSet) MarshalJSON() ([]byte, error) {
	out := make([]RefCount, 0, len(s.entries))
	for _, t := range s.Tracks() {
		out = append(out, *s.entries[t.ID])
	}
	return json.Marshal(out)
}

// UnmarshalJSON replaces the set with the decoded entries, discarding any with a count below 1.
func (s *TrackSet) UnmarshalJSON(data []byte) error {
	var in []RefCount
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	s.entries = make(map[string]*RefCount, len(in))
	for _, rc := range in {
		if rc.Count < 1 || rc.Track.ID == "" {
			continue
		}
		if e, ok := s.entries[rc.Track.ID]; ok {
			e.Count += rc.Count
			continue
		}
		rc := rc
		s.entries[rc.Track.ID] = &rc
	}
	return nil
}
