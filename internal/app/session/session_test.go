package session

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/queuesync/internal/app/playback"
	"github.com/osa030/queuesync/internal/domain/audio"
	"github.com/osa030/queuesync/internal/domain/mediaid"
	"github.com/osa030/queuesync/internal/domain/queue"
)

func TestMain(m *testing.M) {
	timerResolution = 5 * time.Millisecond
	os.Exit(m.Run())
}

type memStore struct {
	mu     sync.Mutex
	audios map[string]audio.Audio
	saved  []queue.Snapshot
	loaded *queue.Snapshot
}

func newMemStore(audios ...audio.Audio) *memStore {
	st := &memStore{audios: make(map[string]audio.Audio)}
	for _, a := range audios {
		st.audios[a.ID] = a
	}
	return st
}

func (m *memStore) FindAudios(_ context.Context, ids []string) ([]audio.Audio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []audio.Audio
	for _, id := range ids {
		if a, ok := m.audios[id]; ok {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *memStore) InsertMissing(_ context.Context, audios []audio.Audio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range audios {
		if _, ok := m.audios[a.ID]; !ok {
			m.audios[a.ID] = a
		}
	}
	return nil
}

func (m *memStore) SaveQueue(_ context.Context, snap queue.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, snap)
	return nil
}

func (m *memStore) LoadQueue(context.Context) (*queue.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded, nil
}

func (m *memStore) savedSnapshots() []queue.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]queue.Snapshot(nil), m.saved...)
}

type fakeCatalog struct {
	albums  map[string][]audio.Audio
	artists map[string][]audio.Audio
	search  map[string][]audio.Audio
	err     error
}

func (c *fakeCatalog) AlbumAudios(_ context.Context, id string) ([]audio.Audio, error) {
	return c.albums[id], c.err
}

func (c *fakeCatalog) ArtistAudios(_ context.Context, id string) ([]audio.Audio, error) {
	return c.artists[id], c.err
}

func (c *fakeCatalog) SearchAudios(_ context.Context, q string) ([]audio.Audio, error) {
	return c.search[q], c.err
}

// recorder is a SessionCallback keeping the latest value of every signal.
type recorder struct {
	mu        sync.Mutex
	controls  playback.TransportControls
	failed    error
	suspended bool
	destroyed bool
	meta      playback.Metadata
	state     playback.PlaybackState
	queue     playback.PlaybackQueue
	mode      playback.PlaybackMode
}

func (r *recorder) OnConnected(c playback.TransportControls) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controls = c
}

func (r *recorder) OnConnectionSuspended() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suspended = true
}

func (r *recorder) OnConnectionFailed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = err
}

func (r *recorder) OnSessionDestroyed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroyed = true
}

func (r *recorder) OnPlaybackStateChanged(s *playback.PlaybackState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = *s
}

func (r *recorder) OnMetadataChanged(m *playback.Metadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meta = *m
}

func (r *recorder) OnQueueChanged(q playback.PlaybackQueue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = q
}

func (r *recorder) OnRepeatModeChanged(m playback.RepeatMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode.Repeat = m
}

func (r *recorder) OnShuffleModeChanged(m playback.ShuffleMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode.Shuffle = m
}

func (r *recorder) snapshot() (playback.Metadata, playback.PlaybackState, playback.PlaybackQueue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meta, r.state, r.queue
}

func track(id string, d time.Duration) audio.Audio {
	return audio.Audio{ID: id, Title: "title-" + id, Artist: "artist", Album: "album", Duration: d}
}

func newTestSession(t *testing.T, st *memStore, catalog Catalog) (*Session, *recorder) {
	t.Helper()
	s := New(st, catalog, Config{BufferAhead: 10 * time.Second, SaveDebounce: 50 * time.Millisecond})
	rec := &recorder{}
	require.NoError(t, s.Connect(rec))
	t.Cleanup(func() { _ = s.Close() })
	return s, rec
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestSession_ConnectLifecycle(t *testing.T) {
	s := New(newMemStore(), nil, Config{})

	rec := &recorder{}
	require.NoError(t, s.Connect(rec))
	assert.Same(t, s, rec.controls)

	waitFor(t, func() bool {
		_, state, _ := rec.snapshot()
		return state.State == playback.StateNone && state.CurrentIndex == -1
	})

	other := &recorder{}
	assert.ErrorIs(t, s.Connect(other), ErrAlreadyConnected)
	assert.ErrorIs(t, other.failed, ErrAlreadyConnected)

	s.Disconnect()
	assert.True(t, rec.suspended)

	require.NoError(t, s.Connect(other))
	require.NoError(t, s.Close())
	assert.True(t, other.destroyed)

	late := &recorder{}
	assert.ErrorIs(t, s.Connect(late), ErrClosed)
	assert.ErrorIs(t, late.failed, ErrClosed)
}

func TestSession_PlayFromMediaID_AudioList(t *testing.T) {
	st := newMemStore(track("a", time.Minute), track("b", time.Minute), track("c", time.Minute))
	s, rec := newTestSession(t, st, nil)

	err := s.PlayFromMediaID(context.Background(), mediaid.Audio("b").String(), playback.Extras{
		playback.ExtraQueueList:  []string{"a", "b", "c"},
		playback.ExtraQueueTitle: "album:Blue",
	})
	require.NoError(t, err)

	waitFor(t, func() bool {
		meta, state, q := rec.snapshot()
		return meta.AudioID() == "b" && state.State == playback.StatePlaying && len(q.IDs) == 3
	})

	meta, state, q := rec.snapshot()
	assert.Equal(t, "title-b", meta.Title)
	assert.Equal(t, time.Minute, meta.Duration)
	assert.Equal(t, 1, state.CurrentIndex)
	assert.Equal(t, []string{"a", "b", "c"}, q.IDs)
	assert.Equal(t, queue.NewTitle(queue.TitleTypeAlbum, "Blue"), q.Title)
}

func TestSession_PlayFromMediaID_Errors(t *testing.T) {
	s, _ := newTestSession(t, newMemStore(track("a", time.Minute)), nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		mediaID  string
		extras   playback.Extras
		expected error
	}{
		{name: "empty", mediaID: "", expected: mediaid.ErrEmpty},
		{name: "bad type", mediaID: "video:x:0", expected: mediaid.ErrUnknownType},
		{name: "not in list", mediaID: "audio:z:0", extras: playback.Extras{playback.ExtraQueueList: []string{"a"}}, expected: ErrInvalidIndex},
		{name: "album without catalog", mediaID: "album:x:0", expected: ErrNoCatalog},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.PlayFromMediaID(ctx, tt.mediaID, tt.extras)
			assert.True(t, errors.Is(err, tt.expected), "got %v", err)
		})
	}
}

func TestSession_PlayFromMediaID_Catalog(t *testing.T) {
	album := []audio.Audio{track("a1", time.Minute), track("a2", time.Minute)}
	album[0].Album, album[1].Album = "Kind of Blue", "Kind of Blue"
	results := []audio.Audio{track("s1", time.Minute), track("s2", time.Minute), track("s3", time.Minute)}

	catalog := &fakeCatalog{
		albums:  map[string][]audio.Audio{"alb": album},
		artists: map[string][]audio.Audio{"art": {track("r1", time.Minute)}},
		search:  map[string][]audio.Audio{"blue": results},
	}

	t.Run("album", func(t *testing.T) {
		st := newMemStore()
		s, rec := newTestSession(t, st, catalog)

		require.NoError(t, s.PlayFromMediaID(context.Background(), "album:alb:1", nil))
		waitFor(t, func() bool {
			meta, _, q := rec.snapshot()
			return meta.AudioID() == "a2" && len(q.IDs) == 2
		})
		_, _, q := rec.snapshot()
		assert.Equal(t, queue.NewTitle(queue.TitleTypeAlbum, "Kind of Blue"), q.Title)

		stored, err := st.FindAudios(context.Background(), []string{"a1", "a2"})
		require.NoError(t, err)
		assert.Len(t, stored, 2)
	})

	t.Run("artist", func(t *testing.T) {
		s, rec := newTestSession(t, newMemStore(), catalog)

		require.NoError(t, s.PlayFromMediaID(context.Background(), "artist:art:0", nil))
		waitFor(t, func() bool {
			_, _, q := rec.snapshot()
			return q.Title == queue.NewTitle(queue.TitleTypeArtist, "artist")
		})
	})

	t.Run("query starts at extras media id", func(t *testing.T) {
		s, rec := newTestSession(t, newMemStore(), catalog)

		err := s.PlayFromMediaID(context.Background(), "audio_query:blue:-1", playback.Extras{
			playback.ExtraQueueMediaID: "s3",
		})
		require.NoError(t, err)
		waitFor(t, func() bool {
			meta, state, _ := rec.snapshot()
			return meta.AudioID() == "s3" && state.CurrentIndex == 2
		})
		_, _, q := rec.snapshot()
		assert.Equal(t, queue.NewTitle(queue.TitleTypeSearch, "blue"), q.Title)
	})

	t.Run("index out of range", func(t *testing.T) {
		s, _ := newTestSession(t, newMemStore(), catalog)
		assert.ErrorIs(t, s.PlayFromMediaID(context.Background(), "album:alb:5", nil), ErrInvalidIndex)
	})

	t.Run("catalog failure", func(t *testing.T) {
		s, _ := newTestSession(t, newMemStore(), &fakeCatalog{err: errors.New("rate limited")})
		assert.Error(t, s.PlayFromMediaID(context.Background(), "album:alb:0", nil))
	})
}

func playList(t *testing.T, s *Session, index int, ids ...string) {
	t.Helper()
	require.NoError(t, s.PlayFromMediaID(context.Background(), mediaid.Audio(ids[index]).String(), playback.Extras{
		playback.ExtraQueueList: ids,
	}))
}

func TestSession_CustomActions(t *testing.T) {
	ctx := context.Background()
	st := newMemStore(track("a", time.Minute), track("b", time.Minute), track("c", time.Minute), track("n", time.Minute))

	tests := []struct {
		name        string
		action      string
		extras      playback.Extras
		expectedIDs []string
		expectedIdx int
		expectedErr error
	}{
		{
			name:        "play next",
			action:      playback.ActionPlayNext,
			extras:      playback.Extras{playback.ExtraQueueMediaID: "n"},
			expectedIDs: []string{"a", "b", "n", "c"},
			expectedIdx: 1,
		},
		{
			name:        "move current item",
			action:      playback.ActionSwapQueue,
			extras:      playback.Extras{playback.ExtraQueueFrom: 1, playback.ExtraQueueTo: 2},
			expectedIDs: []string{"a", "c", "b"},
			expectedIdx: 2,
		},
		{
			name:        "move item over current",
			action:      playback.ActionSwapQueue,
			extras:      playback.Extras{playback.ExtraQueueFrom: 0, playback.ExtraQueueTo: 2},
			expectedIDs: []string{"b", "c", "a"},
			expectedIdx: 0,
		},
		{
			name:        "move with json numbers",
			action:      playback.ActionSwapQueue,
			extras:      playback.Extras{playback.ExtraQueueFrom: float64(2), playback.ExtraQueueTo: float64(0)},
			expectedIDs: []string{"c", "a", "b"},
			expectedIdx: 2,
		},
		{
			name:        "remove before current",
			action:      playback.ActionRemoveByPosition,
			extras:      playback.Extras{playback.ExtraQueueFrom: 0},
			expectedIDs: []string{"b", "c"},
			expectedIdx: 0,
		},
		{
			name:        "remove current plays the following item",
			action:      playback.ActionRemoveByPosition,
			extras:      playback.Extras{playback.ExtraQueueFrom: 1},
			expectedIDs: []string{"a", "c"},
			expectedIdx: 1,
		},
		{
			name:        "remove by id",
			action:      playback.ActionRemoveByID,
			extras:      playback.Extras{playback.ExtraQueueMediaID: "a"},
			expectedIDs: []string{"b", "c"},
			expectedIdx: 0,
		},
		{
			name:        "remove out of range",
			action:      playback.ActionRemoveByPosition,
			extras:      playback.Extras{playback.ExtraQueueFrom: 9},
			expectedIDs: []string{"a", "b", "c"},
			expectedIdx: 1,
			expectedErr: ErrInvalidIndex,
		},
		{
			name:        "unknown action",
			action:      "rewind",
			expectedIDs: []string{"a", "b", "c"},
			expectedIdx: 1,
			expectedErr: ErrUnknownAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rec := newTestSession(t, st, nil)
			playList(t, s, 1, "a", "b", "c")

			err := s.SendCustomAction(ctx, tt.action, tt.extras)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
			}

			waitFor(t, func() bool {
				_, state, q := rec.snapshot()
				return assert.ObjectsAreEqual(tt.expectedIDs, q.IDs) && state.CurrentIndex == tt.expectedIdx
			})
			meta, _, _ := rec.snapshot()
			assert.Equal(t, tt.expectedIDs[tt.expectedIdx], meta.AudioID())
		})
	}
}

func TestSession_RemovingLastItemStops(t *testing.T) {
	s, rec := newTestSession(t, newMemStore(track("a", time.Minute)), nil)
	playList(t, s, 0, "a")

	require.NoError(t, s.SendCustomAction(context.Background(), playback.ActionRemoveByID, playback.Extras{
		playback.ExtraQueueMediaID: "a",
	}))
	waitFor(t, func() bool {
		meta, state, q := rec.snapshot()
		return meta.IsNone() && state.State == playback.StateStopped && state.CurrentIndex == -1 && len(q.IDs) == 0
	})
}

func TestSession_Transport(t *testing.T) {
	st := newMemStore(track("a", time.Minute), track("b", time.Minute))
	s, rec := newTestSession(t, st, nil)

	assert.ErrorIs(t, s.Play(), ErrQueueEmpty)
	assert.ErrorIs(t, s.Pause(), ErrNoTrack)
	assert.ErrorIs(t, s.SeekTo(time.Second), ErrNoTrack)

	playList(t, s, 0, "a", "b")

	require.NoError(t, s.SeekTo(20*time.Second))
	require.NoError(t, s.Pause())
	assert.ErrorIs(t, s.Pause(), ErrNotPlaying)

	waitFor(t, func() bool {
		_, state, _ := rec.snapshot()
		return state.State == playback.StatePaused
	})
	_, state, _ := rec.snapshot()
	assert.InDelta(t, float64(20*time.Second), float64(state.Position), float64(time.Second))
	assert.InDelta(t, float64(30*time.Second), float64(s.BufferedPosition()), float64(time.Second))

	require.NoError(t, s.SkipToNext())
	waitFor(t, func() bool {
		meta, state, _ := rec.snapshot()
		return meta.AudioID() == "b" && state.State == playback.StatePlaying && state.CurrentIndex == 1
	})
	assert.ErrorIs(t, s.SkipToNext(), ErrQueueEmpty)

	require.NoError(t, s.SkipToPrevious())
	waitFor(t, func() bool {
		meta, _, _ := rec.snapshot()
		return meta.AudioID() == "a"
	})

	require.NoError(t, s.SetRepeatMode(playback.RepeatAll))
	require.NoError(t, s.SkipToPrevious())
	waitFor(t, func() bool {
		meta, _, _ := rec.snapshot()
		return meta.AudioID() == "b"
	})
	require.NoError(t, s.SkipToNext())
	waitFor(t, func() bool {
		_, state, _ := rec.snapshot()
		return state.CurrentIndex == 0
	})

	assert.ErrorIs(t, s.SkipToQueueItem(2), ErrInvalidIndex)
	require.NoError(t, s.SkipToQueueItem(1))

	require.NoError(t, s.Stop())
	waitFor(t, func() bool {
		_, state, _ := rec.snapshot()
		return state.State == playback.StateStopped && state.Position == 0
	})

	require.NoError(t, s.Play())
	waitFor(t, func() bool {
		_, state, _ := rec.snapshot()
		return state.State == playback.StatePlaying && state.CurrentIndex == 1
	})

	waitFor(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.mode == playback.PlaybackMode{Repeat: playback.RepeatAll}
	})
}

func TestSession_TrackEndAdvances(t *testing.T) {
	st := newMemStore(track("a", 30*time.Millisecond), track("b", 30*time.Millisecond))

	t.Run("plays through and stops", func(t *testing.T) {
		s, rec := newTestSession(t, st, nil)
		playList(t, s, 0, "a", "b")

		waitFor(t, func() bool {
			meta, state, _ := rec.snapshot()
			return meta.AudioID() == "b" && state.State == playback.StateStopped
		})
	})

	t.Run("repeat one", func(t *testing.T) {
		s, rec := newTestSession(t, st, nil)
		require.NoError(t, s.SetRepeatMode(playback.RepeatOne))
		playList(t, s, 0, "a", "b")

		assert.Never(t, func() bool {
			meta, _, _ := rec.snapshot()
			return meta.AudioID() == "b"
		}, 200*time.Millisecond, 10*time.Millisecond)
		_, state, _ := rec.snapshot()
		assert.Equal(t, playback.StatePlaying, state.State)
	})

	t.Run("paused item does not end", func(t *testing.T) {
		s, rec := newTestSession(t, st, nil)
		playList(t, s, 0, "a", "b")
		require.NoError(t, s.Pause())

		assert.Never(t, func() bool {
			meta, _, _ := rec.snapshot()
			return meta.AudioID() == "b"
		}, 150*time.Millisecond, 10*time.Millisecond)
	})
}

func TestSession_ShuffleKeepsCurrent(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	audios := make([]audio.Audio, len(ids))
	for i, id := range ids {
		audios[i] = track(id, time.Minute)
	}
	s, rec := newTestSession(t, newMemStore(audios...), nil)
	playList(t, s, 2, ids...)

	require.NoError(t, s.SetShuffleMode(playback.ShuffleAll))
	waitFor(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.mode.Shuffle == playback.ShuffleAll
	})

	_, state, q := rec.snapshot()
	assert.Equal(t, []string{"a", "b", "c"}, q.IDs[:3])
	assert.ElementsMatch(t, []string{"d", "e"}, q.IDs[3:])
	assert.Equal(t, 2, state.CurrentIndex)
}

func TestSession_PersistsAndRestores(t *testing.T) {
	st := newMemStore(track("a", time.Minute), track("b", time.Minute))
	s, _ := newTestSession(t, st, nil)

	playList(t, s, 0, "a", "b")
	require.NoError(t, s.SkipToNext())
	require.NoError(t, s.SetRepeatMode(playback.RepeatAll))
	require.NoError(t, s.Pause())

	waitFor(t, func() bool { return len(st.savedSnapshots()) > 0 })
	assert.Never(t, func() bool { return len(st.savedSnapshots()) > 1 }, 100*time.Millisecond, 10*time.Millisecond)

	saved := st.savedSnapshots()[0]
	assert.Equal(t, []string{"a", "b"}, saved.IDs)
	assert.Equal(t, 1, saved.CurrentIndex)
	assert.Equal(t, "all", saved.RepeatMode)

	st.loaded = &saved
	restored, rec := newTestSession(t, st, nil)
	require.NoError(t, restored.Restore(context.Background()))

	waitFor(t, func() bool {
		meta, state, q := rec.snapshot()
		return meta.AudioID() == "b" && state.State == playback.StatePaused && len(q.IDs) == 2
	})
	rec.mu.Lock()
	assert.Equal(t, playback.RepeatAll, rec.mode.Repeat)
	rec.mu.Unlock()

	require.NoError(t, restored.Play())
}

func TestSession_CloseFlushesPendingSave(t *testing.T) {
	st := newMemStore(track("a", time.Minute))
	s := New(st, nil, Config{SaveDebounce: time.Hour})

	playList(t, s, 0, "a")
	assert.Empty(t, st.savedSnapshots())

	require.NoError(t, s.Close())
	require.Len(t, st.savedSnapshots(), 1)
	assert.Equal(t, []string{"a"}, st.savedSnapshots()[0].IDs)
}

func TestSession_DrivesConnection(t *testing.T) {
	st := newMemStore(track("x", time.Minute), track("y", time.Minute), track("z", time.Minute))
	s := New(st, nil, Config{BufferAhead: 5 * time.Second})
	conn := playback.NewConnection(st, s, playback.Config{ProgressInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- conn.Run(ctx) }()
	defer func() {
		_ = s.Close()
		cancel()
		<-done
	}()

	require.NoError(t, s.Connect(conn))
	require.True(t, conn.IsConnected())

	title := queue.NewTitle(queue.TitleTypeAudios, "mix")
	require.NoError(t, conn.PlayAudios(context.Background(), []audio.Audio{{ID: "x"}, {ID: "y"}, {ID: "z"}}, 2, title))

	waitFor(t, func() bool {
		q, _ := conn.Queue().Value()
		return q.Len() == 3 && q.CurrentIndex == 2 && q.Current().ID == "z"
	})
	q, _ := conn.Queue().Value()
	assert.Equal(t, title, q.Title)
	assert.Equal(t, "title-z", q.Current().Title)

	require.NoError(t, conn.SwapQueue(context.Background(), 2, 0))
	waitFor(t, func() bool {
		q, _ := conn.Queue().Value()
		return q.Len() == 3 && q.CurrentIndex == 0 && q.Current().ID == "z"
	})

	waitFor(t, func() bool {
		p, _ := conn.Progress().Value()
		return p.Total == time.Minute && p.Elapsed > 0 && p.Buffered > 0
	})

	s.Disconnect()
	assert.False(t, conn.IsConnected())
	assert.ErrorIs(t, conn.Play(), playback.ErrNotConnected)
}
