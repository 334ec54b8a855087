// Package playback provides the playback connection: it reconciles the media
// session's now-playing metadata, transport state and queue into observable
// values.
package playback

import (
	"time"

	"github.com/osa030/queuesync/internal/domain/mediaid"
)

// State represents the transport state reported by the session.
type State int

const (
	StateNone      State = iota // Session has not reported anything yet
	StateStopped                // Playback stopped
	StatePaused                 // Playback paused
	StatePlaying                // Playback running
	StateBuffering              // Waiting for data
	StateError                  // Session reported an error
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateStopped:
		return "stopped"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	case StateBuffering:
		return "buffering"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// PlaybackState is the transport state snapshot delivered by the session.
type PlaybackState struct {
	State        State
	Position     time.Duration // Position at UpdatedAt
	CurrentIndex int           // Queue position reported by the session
	UpdatedAt    time.Time
}

// NonePlaybackState is the value before the session reports any state.
var NonePlaybackState = PlaybackState{State: StateNone}

// IsNone reports whether this is the initial, unreported state.
func (s PlaybackState) IsNone() bool {
	return s.State == StateNone
}

// IsPlaying reports whether playback is running or about to run.
func (s PlaybackState) IsPlaying() bool {
	return s.State == StatePlaying || s.State == StateBuffering
}

// IsBuffering reports whether the session is waiting for data.
func (s PlaybackState) IsBuffering() bool {
	return s.State == StateBuffering
}

// IsActive reports whether a track is loaded (playing, buffering or paused).
func (s PlaybackState) IsActive() bool {
	return s.IsPlaying() || s.State == StatePaused
}

// Metadata describes the item the session reports as now playing.
type Metadata struct {
	MediaID  string // Raw media id, see mediaid.Parse
	Title    string
	Artist   string
	Album    string
	CoverURL string
	Duration time.Duration
}

// NonePlaying is the value before the session reports any metadata.
var NonePlaying = Metadata{}

// IsNone reports whether nothing is playing.
func (m Metadata) IsNone() bool {
	return m.MediaID == ""
}

// AudioID returns the audio id derived from the media id.
func (m Metadata) AudioID() string {
	return mediaid.AudioIDOf(m.MediaID)
}
