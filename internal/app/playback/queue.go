package playback

import (
	"github.com/osa030/queuesync/internal/domain/audio"
	"github.com/osa030/queuesync/internal/domain/queue"
)

var emptyTitle = queue.Title{Type: queue.TitleTypeUnknown}

// PlaybackQueue is the session queue. IDs and Title come from the session;
// Audios and CurrentIndex are filled in by resolution.
type PlaybackQueue struct {
	IDs          []string // Raw media ids in queue order
	Title        queue.Title
	Audios       []audio.Audio // Hydrated records, missing ids dropped
	CurrentIndex int           // -1 when unresolved
}

// NewPlaybackQueue creates an unresolved queue from raw ids.
func NewPlaybackQueue(ids []string, title queue.Title) PlaybackQueue {
	return PlaybackQueue{
		IDs:          ids,
		Title:        title,
		CurrentIndex: -1,
	}
}

// Len returns the number of hydrated audios.
func (q PlaybackQueue) Len() int {
	return len(q.Audios)
}

// IsEmpty reports whether no audios were hydrated.
func (q PlaybackQueue) IsEmpty() bool {
	return len(q.Audios) == 0
}

// IsValidIndex reports whether i is a position in Audios.
func (q PlaybackQueue) IsValidIndex(i int) bool {
	return i >= 0 && i < len(q.Audios)
}

// Current returns the audio at CurrentIndex, or nil when unresolved.
func (q PlaybackQueue) Current() *audio.Audio {
	if !q.IsValidIndex(q.CurrentIndex) {
		return nil
	}
	return &q.Audios[q.CurrentIndex]
}

// Upcoming returns the audios after the current one.
func (q PlaybackQueue) Upcoming() []audio.Audio {
	if !q.IsValidIndex(q.CurrentIndex) {
		return nil
	}
	return q.Audios[q.CurrentIndex+1:]
}
