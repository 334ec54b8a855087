package session

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/queuesync/internal/app/playback"
	"github.com/osa030/queuesync/internal/domain/audio"
	"github.com/osa030/queuesync/internal/domain/mediaid"
	"github.com/osa030/queuesync/internal/domain/queue"
)

// restartThreshold is the position after which SkipToPrevious restarts the
// current item instead of moving back.
const restartThreshold = 3 * time.Second

// playArgs are the extras accepted by PlayFromMediaID.
type playArgs struct {
	QueueList    []string `mapstructure:"queue_list"`
	QueueTitle   string   `mapstructure:"queue_title"`
	QueueMediaID string   `mapstructure:"queue_media_id"`
}

// actionArgs are the extras accepted by SendCustomAction.
type actionArgs struct {
	MediaID string `mapstructure:"queue_media_id"`
	From    int    `mapstructure:"queue_from"`
	To      int    `mapstructure:"queue_to"`
}

func decodeExtras(extras playback.Extras, out any) error {
	if len(extras) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create extras decoder")
	}
	if err := dec.Decode(map[string]any(extras)); err != nil {
		return errors.Wrap(err, "failed to decode extras")
	}
	return nil
}

// PlayFromMediaID replaces the queue with the media the id points at and
// starts playing.
func (s *Session) PlayFromMediaID(ctx context.Context, raw string, extras playback.Extras) error {
	id, err := mediaid.Parse(raw)
	if err != nil {
		return errors.Wrapf(err, "invalid media id %q", raw)
	}
	var args playArgs
	if err := decodeExtras(extras, &args); err != nil {
		return err
	}

	var (
		ids   []string
		title queue.Title
		index int
	)
	switch id.Type {
	case mediaid.TypeAudio:
		ids = args.QueueList
		if len(ids) == 0 {
			ids = []string{id.Value}
		}
		title = queue.ParseTitle(args.QueueTitle)
		if args.QueueTitle == "" {
			title = queue.NewTitle(queue.TitleTypeAudios, "")
		}
		index = indexOf(ids, id.Value)
		if index < 0 {
			return errors.Wrapf(ErrInvalidIndex, "audio %s is not in the queue list", id.Value)
		}
		if err := s.learn(ctx, ids); err != nil {
			return err
		}

	case mediaid.TypeArtist, mediaid.TypeAlbum, mediaid.TypeAudioQuery:
		audios, err := s.fetch(ctx, id)
		if err != nil {
			return err
		}
		if len(audios) == 0 {
			return errors.Wrapf(ErrQueueEmpty, "nothing found for %s", raw)
		}
		ids = audio.IDs(audios)
		title = titleFor(id, audios)
		index = id.Index
		if id.Index == mediaid.IndexFromExtras {
			index = max(audio.IndexOf(audios, args.QueueMediaID), 0)
		}
		if index < 0 || index >= len(ids) {
			return errors.Wrapf(ErrInvalidIndex, "index %d of %d", index, len(ids))
		}

	default:
		return errors.Wrapf(mediaid.ErrUnknownType, "%s", raw)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.ids = append([]string(nil), ids...)
	s.title = title
	s.index = -1
	if s.shuffle == playback.ShuffleAll {
		s.ids[0], s.ids[index] = s.ids[index], s.ids[0]
		s.shuffleUpcomingLocked(0)
		index = 0
	}
	zlog.Info().Msgf("session: new queue: size=%d index=%d title=%s", len(s.ids), index, s.title)
	s.playLocked(index, 0)
	s.notifyQueueLocked()
	return nil
}

// fetch resolves an artist, album or query media id through the catalog and
// stores the records.
func (s *Session) fetch(ctx context.Context, id mediaid.MediaID) ([]audio.Audio, error) {
	if s.catalog == nil {
		return nil, ErrNoCatalog
	}

	var (
		audios []audio.Audio
		err    error
	)
	switch id.Type {
	case mediaid.TypeArtist:
		audios, err = s.catalog.ArtistAudios(ctx, id.Value)
	case mediaid.TypeAlbum:
		audios, err = s.catalog.AlbumAudios(ctx, id.Value)
	default:
		audios, err = s.catalog.SearchAudios(ctx, id.Value)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", id)
	}

	if err := s.store.InsertMissing(ctx, audios); err != nil {
		return nil, errors.Wrap(err, "failed to store audios")
	}
	s.remember(audios)
	return audios, nil
}

func titleFor(id mediaid.MediaID, audios []audio.Audio) queue.Title {
	switch id.Type {
	case mediaid.TypeArtist:
		if audios[0].Artist != "" {
			return queue.NewTitle(queue.TitleTypeArtist, audios[0].Artist)
		}
		return queue.NewTitle(queue.TitleTypeArtist, id.Value)
	case mediaid.TypeAlbum:
		if audios[0].Album != "" {
			return queue.NewTitle(queue.TitleTypeAlbum, audios[0].Album)
		}
		return queue.NewTitle(queue.TitleTypeAlbum, id.Value)
	default:
		return queue.NewTitle(queue.TitleTypeSearch, id.Value)
	}
}

// SendCustomAction runs a queue editing action.
func (s *Session) SendCustomAction(ctx context.Context, action string, extras playback.Extras) error {
	var args actionArgs
	if err := decodeExtras(extras, &args); err != nil {
		return err
	}

	switch action {
	case playback.ActionPlayNext:
		if args.MediaID == "" {
			return errors.Newf("%s requires %s", action, playback.ExtraQueueMediaID)
		}
		if err := s.learn(ctx, []string{args.MediaID}); err != nil {
			return err
		}
		return s.insertNext(args.MediaID)
	case playback.ActionSwapQueue:
		return s.move(args.From, args.To)
	case playback.ActionRemoveByPosition:
		return s.removeAt(args.From)
	case playback.ActionRemoveByID:
		return s.removeID(args.MediaID)
	default:
		return errors.Wrapf(ErrUnknownAction, "%q", action)
	}
}

// Play resumes a paused item or starts the selected one.
func (s *Session) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == playback.StatePlaying:
		return nil
	case len(s.ids) == 0:
		return ErrQueueEmpty
	case s.state == playback.StatePaused:
		s.resumeLocked()
	default:
		s.playLocked(max(s.index, 0), 0)
	}
	s.notifyTrackLocked()
	return nil
}

// Pause pauses the current item.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.currentLocked(); !ok {
		return ErrNoTrack
	}
	if s.state != playback.StatePlaying {
		return ErrNotPlaying
	}

	s.position = s.positionLocked()
	s.startedAt = toWallTime(time.Now())
	s.state = playback.StatePaused
	s.cancelTimerLocked()
	s.notifyStateLocked()
	return nil
}

// Stop stops playback and rewinds the current item.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelTimerLocked()
	s.state = playback.StateStopped
	s.position = 0
	s.startedAt = toWallTime(time.Now())
	s.notifyStateLocked()
	return nil
}

// SkipToNext plays the next item, wrapping around when repeating all.
func (s *Session) SkipToNext() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.nextIndexLocked()
	if !ok {
		return ErrQueueEmpty
	}
	s.playLocked(next, 0)
	s.notifyTrackLocked()
	return nil
}

// SkipToPrevious restarts the current item, or plays the previous one near
// the start of the item.
func (s *Session) SkipToPrevious() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.ids) == 0 {
		return ErrQueueEmpty
	}

	prev := s.index
	if s.positionLocked() <= restartThreshold {
		switch {
		case s.index > 0:
			prev = s.index - 1
		case s.repeat == playback.RepeatAll:
			prev = len(s.ids) - 1
		}
	}
	s.playLocked(max(prev, 0), 0)
	s.notifyTrackLocked()
	return nil
}

// SkipToQueueItem plays the item at index.
func (s *Session) SkipToQueueItem(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.ids) {
		return errors.Wrapf(ErrInvalidIndex, "index %d of %d", index, len(s.ids))
	}
	s.playLocked(index, 0)
	s.notifyTrackLocked()
	return nil
}

// SeekTo moves within the current item.
func (s *Session) SeekTo(position time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.currentLocked(); !ok {
		return ErrNoTrack
	}

	s.position = s.clampLocked(position)
	s.startedAt = toWallTime(time.Now())
	if s.state == playback.StatePlaying {
		s.startTrackTimerLocked()
	}
	s.notifyStateLocked()
	return nil
}

// SetRepeatMode changes the repeat mode.
func (s *Session) SetRepeatMode(mode playback.RepeatMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.repeat = mode
	s.notifyModeLocked()
	return nil
}

// SetShuffleMode changes the shuffle mode. Turning shuffle on shuffles the
// items after the current one.
func (s *Session) SetShuffleMode(mode playback.ShuffleMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mode == s.shuffle {
		return nil
	}
	s.shuffle = mode
	if mode == playback.ShuffleAll && len(s.ids) > 1 {
		s.shuffleUpcomingLocked(s.index)
		s.notifyQueueLocked()
	}
	s.notifyModeLocked()
	return nil
}

// playLocked makes index the current item and starts it at position.
func (s *Session) playLocked(index int, position time.Duration) {
	s.index = index
	s.state = playback.StatePlaying
	s.position = s.clampLocked(position)

	// The item starts on the client after the gap.
	s.startedAt = toWallTime(time.Now()).Add(s.config.GapCorrection)
	s.startTrackTimerLocked()

	if a, ok := s.currentLocked(); ok {
		zlog.Debug().Msgf("session: playing: index=%d audio=%s duration=%v", index, a.DisplayName(), a.Duration)
	}
}

func (s *Session) resumeLocked() {
	s.state = playback.StatePlaying
	s.startedAt = toWallTime(time.Now())
	s.startTrackTimerLocked()
}

// nextIndexLocked returns the item after the current one.
func (s *Session) nextIndexLocked() (int, bool) {
	switch {
	case len(s.ids) == 0:
		return -1, false
	case s.index+1 < len(s.ids):
		return s.index + 1, true
	case s.repeat == playback.RepeatAll:
		return 0, true
	default:
		return -1, false
	}
}

// startTrackTimerLocked schedules the end of the current item. Items with an
// unknown duration never end on their own.
func (s *Session) startTrackTimerLocked() {
	s.cancelTimerLocked()

	a, ok := s.currentLocked()
	if !ok || a.Duration <= 0 {
		return
	}
	remaining := a.Duration - s.position
	if wait := s.startedAt.Sub(toWallTime(time.Now())); wait > 0 {
		remaining += wait
	}

	gen := s.timerGen
	s.timerCancel = startWallClockTimer(remaining, func() {
		s.onTrackEnd(gen)
	})
}

func (s *Session) cancelTimerLocked() {
	s.timerGen++
	if s.timerCancel != nil {
		s.timerCancel()
		s.timerCancel = nil
	}
}

// onTrackEnd advances after an item played to its end.
func (s *Session) onTrackEnd(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.timerGen || s.state != playback.StatePlaying {
		return
	}
	s.timerCancel = nil

	if a, ok := s.currentLocked(); ok {
		zlog.Debug().Msgf("session: track ended: index=%d audio=%s", s.index, a.DisplayName())
	}

	if s.repeat == playback.RepeatOne {
		s.playLocked(s.index, 0)
		s.notifyTrackLocked()
		return
	}

	next, ok := s.nextIndexLocked()
	if !ok {
		s.state = playback.StateStopped
		s.position = 0
		s.startedAt = toWallTime(time.Now())
		zlog.Info().Msg("session: reached the end of the queue")
		s.notifyStateLocked()
		return
	}
	s.playLocked(next, 0)
	s.notifyTrackLocked()
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
