package notification

import (
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/osa030/queuesync/internal/app/playback"
	"github.com/osa030/queuesync/internal/domain/audio"
)

// MessageType identifies a feed message.
type MessageType string

const (
	// Feed messages
	TypeConnected  MessageType = "connected"
	TypeQueue      MessageType = "queue"
	TypeProgress   MessageType = "progress"
	TypeState      MessageType = "state"
	TypeNowPlaying MessageType = "now_playing"
	TypeMode       MessageType = "mode"

	// Command reply
	TypeResult MessageType = "result"
)

// Message is a feed message as sent over the wire.
type Message struct {
	Type       MessageType     `json:"type"`
	SequenceNo uint64          `json:"seq,omitempty"`
	Timestamp  int64           `json:"timestamp"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Decode decodes the message payload into v.
func (m *Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return errors.Newf("%s message has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.Wrapf(err, "failed to decode %s payload", m.Type)
	}
	return nil
}

// ConnectedPayload reports whether the session is connected.
type ConnectedPayload struct {
	Connected bool `json:"connected"`
}

// AudioPayload describes an audio record.
type AudioPayload struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	CoverURL   string `json:"cover_url,omitempty"`
	URL        string `json:"url,omitempty"`
	Explicit   bool   `json:"explicit,omitempty"`
}

// QueuePayload is the resolved queue.
type QueuePayload struct {
	Title        string         `json:"title"`
	CurrentIndex int            `json:"current_index"`
	Items        []AudioPayload `json:"items"`
}

// ProgressPayload is the playback progress of the now-playing item.
type ProgressPayload struct {
	PositionMs int64   `json:"position_ms"`
	TotalMs    int64   `json:"total_ms"`
	BufferedMs int64   `json:"buffered_ms"`
	Progress   float64 `json:"progress"`
}

// StatePayload is the transport state.
type StatePayload struct {
	State        string `json:"state"`
	PositionMs   int64  `json:"position_ms"`
	CurrentIndex int    `json:"current_index"`
}

// NowPlayingPayload is the now-playing metadata.
type NowPlayingPayload struct {
	MediaID    string `json:"media_id"`
	AudioID    string `json:"audio_id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	CoverURL   string `json:"cover_url,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// ModePayload is the repeat and shuffle mode.
type ModePayload struct {
	Repeat  string `json:"repeat"`
	Shuffle string `json:"shuffle"`
}

// ResultPayload acknowledges a command.
type ResultPayload struct {
	ID    string `json:"id,omitempty"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NewAudioPayload converts an audio record.
func NewAudioPayload(a audio.Audio) AudioPayload {
	return AudioPayload{
		ID:         a.ID,
		Title:      a.Title,
		Artist:     a.Artist,
		Album:      a.Album,
		DurationMs: a.Duration.Milliseconds(),
		CoverURL:   a.CoverURL,
		URL:        a.URL,
		Explicit:   a.Explicit,
	}
}

// NewQueuePayload converts a resolved queue.
func NewQueuePayload(q playback.PlaybackQueue) QueuePayload {
	items := make([]AudioPayload, len(q.Audios))
	for i, a := range q.Audios {
		items[i] = NewAudioPayload(a)
	}
	return QueuePayload{
		Title:        q.Title.String(),
		CurrentIndex: q.CurrentIndex,
		Items:        items,
	}
}

// NewProgressPayload converts a progress sample.
func NewProgressPayload(p playback.ProgressState) ProgressPayload {
	return ProgressPayload{
		PositionMs: p.Current().Milliseconds(),
		TotalMs:    p.Total.Milliseconds(),
		BufferedMs: p.Buffered.Milliseconds(),
		Progress:   p.Progress(),
	}
}

// NewStatePayload converts a transport state.
func NewStatePayload(s playback.PlaybackState) StatePayload {
	return StatePayload{
		State:        s.State.String(),
		PositionMs:   s.Position.Milliseconds(),
		CurrentIndex: s.CurrentIndex,
	}
}

// NewNowPlayingPayload converts now-playing metadata.
func NewNowPlayingPayload(m playback.Metadata) NowPlayingPayload {
	return NowPlayingPayload{
		MediaID:    m.MediaID,
		AudioID:    m.AudioID(),
		Title:      m.Title,
		Artist:     m.Artist,
		Album:      m.Album,
		CoverURL:   m.CoverURL,
		DurationMs: m.Duration.Milliseconds(),
	}
}

// NewModePayload converts a playback mode.
func NewModePayload(m playback.PlaybackMode) ModePayload {
	return ModePayload{
		Repeat:  m.Repeat.String(),
		Shuffle: m.Shuffle.String(),
	}
}
