package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/queuesync/internal/domain/audio"
	"github.com/osa030/queuesync/internal/domain/mediaid"
	"github.com/osa030/queuesync/internal/domain/queue"
)

// Errors
var (
	ErrNotConnected = errors.New("not connected to media session")
	ErrInvalidIndex = errors.New("invalid queue index")
	ErrNoAudios     = errors.New("no audios to play")
)

// Config holds connection configuration.
type Config struct {
	ProgressInterval time.Duration // Progress tick interval
}

// Verify Connection implements SessionCallback at compile time.
var _ SessionCallback = (*Connection)(nil)

// Connection is the client side of a media session. It receives the session's
// callbacks, exposes them as replay-latest streams and sends commands through
// the session's transport controls.
type Connection struct {
	mu       sync.RWMutex
	controls TransportControls

	connected     *Latest[bool]
	playbackState *Latest[PlaybackState]
	nowPlaying    *Latest[Metadata]
	mode          *Latest[PlaybackMode]

	reconciler *Reconciler
	progress   *ProgressTicker

	// Latest (state, metadata) pair driving the progress ticker
	progressMu sync.Mutex
	lastState  PlaybackState
	lastMeta   Metadata

	modeMu sync.Mutex
}

// NewConnection creates a disconnected connection. finder hydrates queue ids;
// player supplies buffered positions and may be nil.
func NewConnection(finder AudioFinder, player BufferedPositioner, cfg Config) *Connection {
	return &Connection{
		connected:     NewLatestWith(false),
		playbackState: NewLatestWith(NonePlaybackState),
		nowPlaying:    NewLatestWith(NonePlaying),
		mode:          NewLatestWith(PlaybackMode{}),
		reconciler:    NewReconciler(finder),
		progress:      NewProgressTicker(cfg.ProgressInterval, player),
		lastState:     NonePlaybackState,
		lastMeta:      NonePlaying,
	}
}

// Run resolves the playback queue until ctx is done, then closes all streams.
func (c *Connection) Run(ctx context.Context) error {
	err := c.reconciler.Run(ctx)

	c.progress.Close()
	c.connected.Close()
	c.playbackState.Close()
	c.nowPlaying.Close()
	c.mode.Close()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// IsConnected reports whether the session is connected.
func (c *Connection) IsConnected() bool {
	v, _ := c.connected.Value()
	return v
}

// Connected returns the connectivity stream.
func (c *Connection) Connected() *Latest[bool] { return c.connected }

// PlaybackState returns the transport state stream.
func (c *Connection) PlaybackState() *Latest[PlaybackState] { return c.playbackState }

// NowPlaying returns the now-playing metadata stream.
func (c *Connection) NowPlaying() *Latest[Metadata] { return c.nowPlaying }

// Queue returns the resolved queue stream.
func (c *Connection) Queue() *Latest[PlaybackQueue] { return c.reconciler.Queue() }

// Progress returns the playback progress stream.
func (c *Connection) Progress() *Latest[ProgressState] { return c.progress.Progress() }

// Mode returns the repeat/shuffle mode stream.
func (c *Connection) Mode() *Latest[PlaybackMode] { return c.mode }

// OnConnected is called once the session accepts the connection.
func (c *Connection) OnConnected(controls TransportControls) {
	c.mu.Lock()
	c.controls = controls
	c.mu.Unlock()

	c.connected.Publish(true)
	zlog.Info().Msg("playback: connected to media session")
}

// OnConnectionSuspended is called when the session goes away temporarily.
func (c *Connection) OnConnectionSuspended() {
	c.disconnect()
	zlog.Info().Msg("playback: media session connection suspended")
}

// OnConnectionFailed is called when the session refuses the connection.
func (c *Connection) OnConnectionFailed(err error) {
	c.disconnect()
	zlog.Error().Msgf("playback: media session connection failed: %v", err)
}

// OnSessionDestroyed is called when the session shuts down.
func (c *Connection) OnSessionDestroyed() {
	c.disconnect()
	zlog.Info().Msg("playback: media session destroyed")
}

func (c *Connection) disconnect() {
	c.mu.Lock()
	c.controls = nil
	c.mu.Unlock()

	c.connected.Publish(false)
}

// OnPlaybackStateChanged records a new transport state. Nil is ignored.
func (c *Connection) OnPlaybackStateChanged(state *PlaybackState) {
	if state == nil {
		return
	}
	c.playbackState.Publish(*state)
	c.reconciler.SetPlaybackState(*state)

	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	c.lastState = *state
	c.progress.Update(c.lastState, c.lastMeta)
}

// OnMetadataChanged records new now-playing metadata. Nil is ignored.
func (c *Connection) OnMetadataChanged(metadata *Metadata) {
	if metadata == nil {
		return
	}
	c.nowPlaying.Publish(*metadata)
	c.reconciler.SetNowPlaying(*metadata)

	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	c.lastMeta = *metadata
	c.progress.Update(c.lastState, c.lastMeta)
}

// OnQueueChanged records a new raw queue.
func (c *Connection) OnQueueChanged(q PlaybackQueue) {
	zlog.Debug().Msgf("playback: new queue: size=%d title=%s", len(q.IDs), q.Title)
	c.reconciler.SetQueue(q)
}

// OnRepeatModeChanged records the session's repeat mode.
func (c *Connection) OnRepeatModeChanged(mode RepeatMode) {
	c.modeMu.Lock()
	defer c.modeMu.Unlock()

	m, _ := c.mode.Value()
	m.Repeat = mode
	c.mode.Publish(m)
}

// OnShuffleModeChanged records the session's shuffle mode.
func (c *Connection) OnShuffleModeChanged(mode ShuffleMode) {
	c.modeMu.Lock()
	defer c.modeMu.Unlock()

	m, _ := c.mode.Value()
	m.Shuffle = mode
	c.mode.Publish(m)
}

func (c *Connection) transport() (TransportControls, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.controls == nil {
		return nil, ErrNotConnected
	}
	return c.controls, nil
}

// PlayAudio replaces the queue with a single audio and plays it.
func (c *Connection) PlayAudio(ctx context.Context, a audio.Audio, title queue.Title) error {
	return c.PlayAudios(ctx, []audio.Audio{a}, 0, title)
}

// PlayAudios replaces the queue with audios and starts at index.
func (c *Connection) PlayAudios(ctx context.Context, audios []audio.Audio, index int, title queue.Title) error {
	if len(audios) == 0 {
		return ErrNoAudios
	}
	if index < 0 || index >= len(audios) {
		return errors.Wrapf(ErrInvalidIndex, "index %d of %d", index, len(audios))
	}

	controls, err := c.transport()
	if err != nil {
		return err
	}
	return controls.PlayFromMediaID(ctx, mediaid.Audio(audios[index].ID).String(), Extras{
		ExtraQueueList:  audio.IDs(audios),
		ExtraQueueTitle: title.String(),
	})
}

// PlayNextAudio inserts an audio right after the current one.
func (c *Connection) PlayNextAudio(ctx context.Context, a audio.Audio) error {
	controls, err := c.transport()
	if err != nil {
		return err
	}
	return controls.SendCustomAction(ctx, ActionPlayNext, Extras{ExtraQueueMediaID: a.ID})
}

// PlayArtist plays an artist's audios starting at index.
func (c *Connection) PlayArtist(ctx context.Context, artistID string, index int) error {
	controls, err := c.transport()
	if err != nil {
		return err
	}
	return controls.PlayFromMediaID(ctx, mediaid.New(mediaid.TypeArtist, artistID, index).String(), nil)
}

// PlayAlbum plays an album's audios starting at index.
func (c *Connection) PlayAlbum(ctx context.Context, albumID string, index int) error {
	controls, err := c.transport()
	if err != nil {
		return err
	}
	return controls.PlayFromMediaID(ctx, mediaid.New(mediaid.TypeAlbum, albumID, index).String(), nil)
}

// PlayWithQuery plays the results of a search, starting at audioID.
func (c *Connection) PlayWithQuery(ctx context.Context, query, audioID string) error {
	controls, err := c.transport()
	if err != nil {
		return err
	}
	return controls.PlayFromMediaID(ctx,
		mediaid.New(mediaid.TypeAudioQuery, query, mediaid.IndexFromExtras).String(),
		Extras{ExtraQueueMediaID: audioID},
	)
}

// SwapQueue moves the queue item at from to position to.
func (c *Connection) SwapQueue(ctx context.Context, from, to int) error {
	controls, err := c.transport()
	if err != nil {
		return err
	}
	return controls.SendCustomAction(ctx, ActionSwapQueue, Extras{
		ExtraQueueFrom: from,
		ExtraQueueTo:   to,
	})
}

// RemoveByPosition removes the queue item at position.
func (c *Connection) RemoveByPosition(ctx context.Context, position int) error {
	controls, err := c.transport()
	if err != nil {
		return err
	}
	return controls.SendCustomAction(ctx, ActionRemoveByPosition, Extras{ExtraQueueFrom: position})
}

// RemoveByID removes every queue item with the given audio id.
func (c *Connection) RemoveByID(ctx context.Context, id string) error {
	controls, err := c.transport()
	if err != nil {
		return err
	}
	return controls.SendCustomAction(ctx, ActionRemoveByID, Extras{ExtraQueueMediaID: id})
}

// Play resumes or starts playback.
func (c *Connection) Play() error {
	return c.with(func(t TransportControls) error { return t.Play() })
}

// Pause pauses playback.
func (c *Connection) Pause() error {
	return c.with(func(t TransportControls) error { return t.Pause() })
}

// Stop stops playback.
func (c *Connection) Stop() error {
	return c.with(func(t TransportControls) error { return t.Stop() })
}

// SkipToNext skips to the next queue item.
func (c *Connection) SkipToNext() error {
	return c.with(func(t TransportControls) error { return t.SkipToNext() })
}

// SkipToPrevious skips to the previous queue item.
func (c *Connection) SkipToPrevious() error {
	return c.with(func(t TransportControls) error { return t.SkipToPrevious() })
}

// SkipToQueueItem jumps to a queue position.
func (c *Connection) SkipToQueueItem(index int) error {
	return c.with(func(t TransportControls) error { return t.SkipToQueueItem(index) })
}

// SeekTo seeks within the current item.
func (c *Connection) SeekTo(position time.Duration) error {
	return c.with(func(t TransportControls) error { return t.SeekTo(position) })
}

// SetRepeatMode changes the session's repeat mode.
func (c *Connection) SetRepeatMode(mode RepeatMode) error {
	return c.with(func(t TransportControls) error { return t.SetRepeatMode(mode) })
}

// SetShuffleMode changes the session's shuffle mode.
func (c *Connection) SetShuffleMode(mode ShuffleMode) error {
	return c.with(func(t TransportControls) error { return t.SetShuffleMode(mode) })
}

func (c *Connection) with(fn func(TransportControls) error) error {
	controls, err := c.transport()
	if err != nil {
		return err
	}
	return fn(controls)
}
