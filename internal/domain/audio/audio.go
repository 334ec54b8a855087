// Package audio provides the Audio domain entity.
package audio

import (
	"strings"
	"time"
)

// Audio represents a playable audio record as stored locally.
type Audio struct {
	ID       string        // Catalog audio ID
	Title    string        // Track title
	Artist   string        // Artist names, comma separated
	Album    string        // Album name
	Duration time.Duration // Track duration
	CoverURL string        // Album art URL
	URL      string        // Catalog URL
	Explicit bool          // Explicit content flag
	AddedAt  time.Time     // Time when stored locally
}

// IsValid reports whether the audio can be queued.
func (a *Audio) IsValid() bool {
	return strings.TrimSpace(a.ID) != ""
}

// DisplayName returns "Artist - Title", falling back to whichever part is set.
func (a *Audio) DisplayName() string {
	switch {
	case a.Artist != "" && a.Title != "":
		return a.Artist + " - " + a.Title
	case a.Title != "":
		return a.Title
	case a.Artist != "":
		return a.Artist
	default:
		return a.ID
	}
}

// IDs returns the IDs of the given audios in order.
func IDs(audios []Audio) []string {
	ids := make([]string, len(audios))
	for i, a := range audios {
		ids[i] = a.ID
	}
	return ids
}

// TotalDuration returns the summed duration of the given audios.
func TotalDuration(audios []Audio) time.Duration {
	var total time.Duration
	for _, a := range audios {
		total += a.Duration
	}
	return total
}

// IndexOf returns the position of the first audio with the given ID, or -1.
func IndexOf(audios []Audio, id string) int {
	for i, a := range audios {
		if a.ID == id {
			return i
		}
	}
	return -1
}
