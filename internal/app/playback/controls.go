package playback

import (
	"context"
	"time"
)

// Extras carries command arguments to the session.
type Extras map[string]any

// Extras keys.
const (
	ExtraQueueList    = "queue_list"
	ExtraQueueTitle   = "queue_title"
	ExtraQueueMediaID = "queue_media_id"
	ExtraQueueFrom    = "queue_from"
	ExtraQueueTo      = "queue_to"
)

// Custom session actions.
const (
	ActionPlayNext         = "play_next"
	ActionSwapQueue        = "swap_queue"
	ActionRemoveByPosition = "remove_by_position"
	ActionRemoveByID       = "remove_by_id"
)

// TransportControls sends commands to the media session.
type TransportControls interface {
	PlayFromMediaID(ctx context.Context, mediaID string, extras Extras) error
	SendCustomAction(ctx context.Context, action string, extras Extras) error
	Play() error
	Pause() error
	Stop() error
	SkipToNext() error
	SkipToPrevious() error
	SkipToQueueItem(index int) error
	SeekTo(position time.Duration) error
	SetRepeatMode(mode RepeatMode) error
	SetShuffleMode(mode ShuffleMode) error
}

// SessionCallback receives the media session's connection and change
// notifications. Metadata, state and queue callbacks are independent and
// carry no ordering guarantee between them.
type SessionCallback interface {
	OnConnected(controls TransportControls)
	OnConnectionSuspended()
	OnConnectionFailed(err error)
	OnSessionDestroyed()

	OnPlaybackStateChanged(state *PlaybackState)
	OnMetadataChanged(metadata *Metadata)
	OnQueueChanged(queue PlaybackQueue)
	OnRepeatModeChanged(mode RepeatMode)
	OnShuffleModeChanged(mode ShuffleMode)
}
