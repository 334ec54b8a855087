// Package session provides an in-process media session. It owns the play
// queue and transport state, accepts commands through playback.TransportControls
// and reports every change to one connected playback.SessionCallback.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/queuesync/internal/app/playback"
	"github.com/osa030/queuesync/internal/domain/audio"
	"github.com/osa030/queuesync/internal/domain/mediaid"
	"github.com/osa030/queuesync/internal/domain/queue"
)

// Errors
var (
	ErrClosed           = errors.New("session is closed")
	ErrAlreadyConnected = errors.New("session already has a connection")
	ErrNoTrack          = errors.New("no track playing")
	ErrQueueEmpty       = errors.New("queue is empty")
	ErrNotPlaying       = errors.New("not playing")
	ErrInvalidIndex     = errors.New("invalid queue index")
	ErrUnknownAction    = errors.New("unknown custom action")
	ErrNoCatalog        = errors.New("no catalog configured")
)

// Catalog resolves collections into audio records.
type Catalog interface {
	AlbumAudios(ctx context.Context, albumID string) ([]audio.Audio, error)
	ArtistAudios(ctx context.Context, artistID string) ([]audio.Audio, error)
	SearchAudios(ctx context.Context, query string) ([]audio.Audio, error)
}

// Store provides audio records and queue persistence.
type Store interface {
	FindAudios(ctx context.Context, ids []string) ([]audio.Audio, error)
	InsertMissing(ctx context.Context, audios []audio.Audio) error
	SaveQueue(ctx context.Context, snapshot queue.Snapshot) error
	LoadQueue(ctx context.Context) (*queue.Snapshot, error)
}

// Config holds session configuration.
type Config struct {
	BufferAhead   time.Duration // Simulated read-ahead reported by BufferedPosition
	SaveDebounce  time.Duration // Delay before a queue change is persisted
	GapCorrection time.Duration // Small delay to compensate for client drift
}

// Verify Session implements the playback interfaces at compile time.
var (
	_ playback.TransportControls  = (*Session)(nil)
	_ playback.BufferedPositioner = (*Session)(nil)
)

// Session is a local media session.
type Session struct {
	id      string
	config  Config
	store   Store
	catalog Catalog

	mu sync.Mutex

	// Queue
	ids   []string
	title queue.Title
	index int
	known map[string]audio.Audio

	// Transport
	state     playback.State
	position  time.Duration // Position at startedAt
	startedAt time.Time     // Wall time position was recorded
	repeat    playback.RepeatMode
	shuffle   playback.ShuffleMode

	// Track end timer
	timerCancel func()
	timerGen    uint64

	// Connection
	callback playback.SessionCallback
	delivery *delivery
	closed   bool

	saver *debouncer
}

// New creates a session. catalog may be nil, in which case artist, album and
// query media ids are rejected.
func New(store Store, catalog Catalog, config Config) *Session {
	s := &Session{
		id:      uuid.New().String(),
		config:  config,
		store:   store,
		catalog: catalog,
		index:   -1,
		known:   make(map[string]audio.Audio),
		state:   playback.StateNone,
	}
	s.saver = newDebouncer(config.SaveDebounce, s.persist)
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Connect registers cb and starts delivering changes to it.
func (s *Session) Connect(cb playback.SessionCallback) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cb.OnConnectionFailed(ErrClosed)
		return ErrClosed
	}
	if s.callback != nil {
		s.mu.Unlock()
		cb.OnConnectionFailed(ErrAlreadyConnected)
		return ErrAlreadyConnected
	}
	s.callback = cb
	s.mu.Unlock()

	cb.OnConnected(s)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callback != cb {
		return nil
	}
	s.delivery = startDelivery(cb)
	s.notifyAllLocked()

	zlog.Info().Msgf("session: connected: session_id=%s", s.id)
	return nil
}

// Disconnect stops delivering changes and suspends the connection.
func (s *Session) Disconnect() {
	cb, d := s.detach()
	if cb == nil {
		return
	}
	d.stop()
	cb.OnConnectionSuspended()
	zlog.Info().Msgf("session: disconnected: session_id=%s", s.id)
}

// Close stops playback, flushes pending persistence and destroys the session.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancelTimerLocked()
	s.mu.Unlock()

	cb, d := s.detach()
	if cb != nil {
		d.stop()
		cb.OnSessionDestroyed()
	}

	err := s.saver.flush()
	zlog.Info().Msgf("session: closed: session_id=%s", s.id)
	return err
}

func (s *Session) detach() (playback.SessionCallback, *delivery) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, d := s.callback, s.delivery
	s.callback = nil
	s.delivery = nil
	return cb, d
}

// Restore loads the persisted queue. The restored queue is paused at the
// saved position.
func (s *Session) Restore(ctx context.Context) error {
	snap, err := s.store.LoadQueue(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load queue")
	}
	if snap == nil || len(snap.IDs) == 0 {
		return nil
	}

	if err := s.learn(ctx, snap.IDs); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelTimerLocked()
	s.ids = append([]string(nil), snap.IDs...)
	s.title = snap.Title
	s.index = -1
	s.state = playback.StateStopped
	s.position = 0
	s.repeat = playback.ParseRepeatMode(snap.RepeatMode)
	s.shuffle = playback.ParseShuffleMode(snap.ShuffleMode)
	if snap.HasCurrent() {
		s.index = snap.CurrentIndex
		s.state = playback.StatePaused
		s.position = s.clampLocked(snap.Position)
	}
	s.startedAt = toWallTime(time.Now())

	zlog.Info().Msgf("session: queue restored: size=%d index=%d title=%s", len(s.ids), s.index, s.title)
	s.notifyAllLocked()
	return nil
}

// BufferedPosition reports the current position plus the simulated
// read-ahead, capped at the track duration.
func (s *Session) BufferedPosition() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.currentLocked()
	if !ok {
		return 0
	}
	buffered := s.positionLocked() + s.config.BufferAhead
	if a.Duration > 0 && buffered > a.Duration {
		return a.Duration
	}
	return buffered
}

// learn caches the audio records of ids so transport changes never hit the store.
func (s *Session) learn(ctx context.Context, ids []string) error {
	missing := make([]string, 0, len(ids))
	s.mu.Lock()
	for _, id := range ids {
		if _, ok := s.known[id]; !ok {
			missing = append(missing, id)
		}
	}
	s.mu.Unlock()
	if len(missing) == 0 {
		return nil
	}

	audios, err := s.store.FindAudios(ctx, missing)
	if err != nil {
		return errors.Wrap(err, "failed to find audios")
	}
	s.remember(audios)
	return nil
}

func (s *Session) remember(audios []audio.Audio) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range audios {
		s.known[a.ID] = a
	}
}

func (s *Session) currentLocked() (audio.Audio, bool) {
	if s.index < 0 || s.index >= len(s.ids) {
		return audio.Audio{}, false
	}
	a, ok := s.known[s.ids[s.index]]
	if !ok {
		return audio.Audio{ID: s.ids[s.index]}, true
	}
	return a, true
}

// positionLocked returns the position inside the current item.
func (s *Session) positionLocked() time.Duration {
	if s.state != playback.StatePlaying {
		return s.position
	}
	now := toWallTime(time.Now())
	if now.Before(s.startedAt) {
		return s.position
	}
	return s.clampLocked(s.position + now.Sub(s.startedAt))
}

func (s *Session) clampLocked(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if a, ok := s.currentLocked(); ok && a.Duration > 0 && d > a.Duration {
		return a.Duration
	}
	return d
}

func (s *Session) metadataLocked() playback.Metadata {
	a, ok := s.currentLocked()
	if !ok {
		return playback.NonePlaying
	}
	return playback.Metadata{
		MediaID:  mediaid.Audio(a.ID).String(),
		Title:    a.Title,
		Artist:   a.Artist,
		Album:    a.Album,
		CoverURL: a.CoverURL,
		Duration: a.Duration,
	}
}

func (s *Session) stateLocked() playback.PlaybackState {
	return playback.PlaybackState{
		State:        s.state,
		Position:     s.position,
		CurrentIndex: s.index,
		UpdatedAt:    s.startedAt,
	}
}

func (s *Session) queueLocked() playback.PlaybackQueue {
	return playback.NewPlaybackQueue(append([]string(nil), s.ids...), s.title)
}

func (s *Session) modeLocked() playback.PlaybackMode {
	return playback.PlaybackMode{Repeat: s.repeat, Shuffle: s.shuffle}
}

func (s *Session) snapshotLocked() queue.Snapshot {
	return queue.Snapshot{
		IDs:          append([]string(nil), s.ids...),
		Title:        s.title,
		CurrentIndex: s.index,
		Position:     s.positionLocked(),
		RepeatMode:   s.repeat.String(),
		ShuffleMode:  s.shuffle.String(),
		UpdatedAt:    time.Now(),
	}
}

func (s *Session) notifyAllLocked() {
	if s.delivery == nil {
		return
	}
	s.delivery.metadata.post(s.metadataLocked())
	s.delivery.state.post(s.stateLocked())
	s.delivery.queue.post(s.queueLocked())
	s.delivery.mode.post(s.modeLocked())
}

func (s *Session) notifyTrackLocked() {
	if s.delivery != nil {
		s.delivery.metadata.post(s.metadataLocked())
		s.delivery.state.post(s.stateLocked())
	}
	s.saver.schedule(s.snapshotLocked())
}

func (s *Session) notifyStateLocked() {
	if s.delivery != nil {
		s.delivery.state.post(s.stateLocked())
	}
	s.saver.schedule(s.snapshotLocked())
}

func (s *Session) notifyQueueLocked() {
	if s.delivery != nil {
		s.delivery.queue.post(s.queueLocked())
		s.delivery.metadata.post(s.metadataLocked())
		s.delivery.state.post(s.stateLocked())
	}
	s.saver.schedule(s.snapshotLocked())
}

func (s *Session) notifyModeLocked() {
	if s.delivery != nil {
		s.delivery.mode.post(s.modeLocked())
	}
	s.saver.schedule(s.snapshotLocked())
}

func (s *Session) persist(snap queue.Snapshot) error {
	if err := s.store.SaveQueue(context.Background(), snap); err != nil {
		zlog.Error().Msgf("session: failed to save queue: %v", err)
		return err
	}
	zlog.Debug().Msgf("session: queue saved: size=%d index=%d", len(snap.IDs), snap.CurrentIndex)
	return nil
}
