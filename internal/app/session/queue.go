package session

import (
	"math/rand"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/queuesync/internal/app/playback"
)

// insertNext inserts id right after the current item.
func (s *Session) insertNext(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.index + 1
	s.ids = slices.Insert(s.ids, pos, id)
	zlog.Debug().Msgf("session: queued next: audio=%s position=%d", id, pos)
	s.notifyQueueLocked()
	return nil
}

// move moves the item at from to position to, keeping the current item selected.
func (s *Session) move(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.ids)
	if from < 0 || from >= n || to < 0 || to >= n {
		return errors.Wrapf(ErrInvalidIndex, "move %d to %d of %d", from, to, n)
	}
	if from == to {
		return nil
	}

	id := s.ids[from]
	s.ids = slices.Delete(s.ids, from, from+1)
	s.ids = slices.Insert(s.ids, to, id)

	switch {
	case s.index == from:
		s.index = to
	case from < s.index && to >= s.index:
		s.index--
	case from > s.index && to <= s.index:
		s.index++
	}
	s.notifyQueueLocked()
	return nil
}

// removeAt removes the item at position.
func (s *Session) removeAt(position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if position < 0 || position >= len(s.ids) {
		return errors.Wrapf(ErrInvalidIndex, "remove %d of %d", position, len(s.ids))
	}

	s.ids = slices.Delete(s.ids, position, position+1)
	switch {
	case position < s.index:
		s.index--
	case position == s.index:
		s.replaceCurrentLocked(position)
	}
	s.notifyQueueLocked()
	return nil
}

// removeID removes every item with the given audio id.
func (s *Session) removeID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	currentRemoved := s.index >= 0 && s.index < len(s.ids) && s.ids[s.index] == id
	before := 0
	kept := s.ids[:0:0]
	for i, v := range s.ids {
		if v == id {
			if i < s.index {
				before++
			}
			continue
		}
		kept = append(kept, v)
	}
	if len(kept) == len(s.ids) {
		return nil
	}

	s.ids = kept
	s.index -= before
	if currentRemoved {
		s.replaceCurrentLocked(s.index)
	}
	s.notifyQueueLocked()
	return nil
}

// replaceCurrentLocked selects candidate after the current item was removed.
// Playback continues if it was running.
func (s *Session) replaceCurrentLocked(candidate int) {
	wasPlaying := s.state == playback.StatePlaying
	s.cancelTimerLocked()

	if len(s.ids) == 0 {
		s.index = -1
		s.state = playback.StateStopped
		s.position = 0
		s.startedAt = toWallTime(time.Now())
		return
	}

	candidate = min(max(candidate, 0), len(s.ids)-1)
	if wasPlaying {
		s.playLocked(candidate, 0)
		return
	}
	s.index = candidate
	s.position = 0
	s.startedAt = toWallTime(time.Now())
}

// shuffleUpcomingLocked shuffles the items after from.
func (s *Session) shuffleUpcomingLocked(from int) {
	upcoming := s.ids[from+1:]
	rand.Shuffle(len(upcoming), func(i, j int) {
		upcoming[i], upcoming[j] = upcoming[j], upcoming[i]
	})
}
