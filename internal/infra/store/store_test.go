package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/queuesync/internal/domain/audio"
	"github.com/osa030/queuesync/internal/domain/queue"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newAudio(id string) audio.Audio {
	return audio.Audio{
		ID:       id,
		Title:    "title-" + id,
		Artist:   "artist-" + id,
		Album:    "album",
		Duration: 3*time.Minute + 25*time.Second,
		URL:      "https://open.spotify.com/track/" + id,
		Explicit: id == "e",
		AddedAt:  time.Unix(1700000000, 0),
	}
}

func TestStore_FindAudios(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Upsert(ctx, []audio.Audio{newAudio("a"), newAudio("c"), newAudio("e")}))
	require.NoError(t, s.SaveDownload(ctx, Download{Audio: newAudio("d"), FilePath: "/music/d.mp3", Status: DownloadCompleted}))

	tests := []struct {
		name     string
		ids      []string
		expected []string
	}{
		{name: "order follows ids", ids: []string{"c", "a"}, expected: []string{"c", "a"}},
		{name: "missing ids dropped", ids: []string{"a", "b", "c"}, expected: []string{"a", "c"}},
		{name: "falls back to downloads", ids: []string{"d", "a"}, expected: []string{"d", "a"}},
		{name: "duplicates kept", ids: []string{"a", "c", "a"}, expected: []string{"a", "c", "a"}},
		{name: "empty", ids: nil, expected: []string{}},
		{name: "nothing found", ids: []string{"x", "y"}, expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audios, err := s.FindAudios(ctx, tt.ids)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, audio.IDs(audios))
		})
	}

	audios, err := s.FindAudios(ctx, []string{"e"})
	require.NoError(t, err)
	require.Len(t, audios, 1)
	assert.Equal(t, newAudio("e"), audios[0])
}

func TestStore_InsertMissingKeepsExisting(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	original := newAudio("a")
	require.NoError(t, s.Upsert(ctx, []audio.Audio{original}))

	changed := original
	changed.Title = "renamed"
	require.NoError(t, s.InsertMissing(ctx, []audio.Audio{changed, newAudio("b"), {ID: " "}}))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "title-a", got.Title)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Upsert(ctx, []audio.Audio{changed}))
	got, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
}

func TestStore_GetHasDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Upsert(ctx, []audio.Audio{newAudio("a"), newAudio("b")}))

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := s.Has(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "a"))
	assert.ErrorIs(t, s.Delete(ctx, "a"), ErrNotFound)

	ok, err = s.Has(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	var audios []audio.Audio
	for i, id := range []string{"a", "b", "c"} {
		a := newAudio(id)
		a.AddedAt = time.Unix(int64(1700000000+i), 0)
		audios = append(audios, a)
	}
	require.NoError(t, s.Upsert(ctx, audios))

	all, err := s.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, audio.IDs(all))

	page, err := s.List(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, audio.IDs(page))
}

func TestStore_Downloads(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.SaveDownload(ctx, Download{Audio: newAudio("a"), FilePath: "/music/a.mp3"}))
	assert.Error(t, s.SaveDownload(ctx, Download{FilePath: "/music/x.mp3"}))

	downloads, err := s.Downloads(ctx)
	require.NoError(t, err)
	require.Len(t, downloads, 1)
	assert.Equal(t, DownloadQueued, downloads[0].Status)
	assert.Equal(t, "/music/a.mp3", downloads[0].FilePath)
	assert.Equal(t, newAudio("a"), downloads[0].Audio)
}

func TestStore_Queue(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	snap, err := s.LoadQueue(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	saved := queue.Snapshot{
		IDs:          []string{"a", "b", "a"},
		Title:        queue.NewTitle(queue.TitleTypeAlbum, "Blue: Live"),
		CurrentIndex: 2,
		Position:     42 * time.Second,
		RepeatMode:   "all",
		ShuffleMode:  "none",
		UpdatedAt:    time.Unix(1700000000, 0),
	}
	require.NoError(t, s.SaveQueue(ctx, saved))

	replaced := saved
	replaced.IDs = []string{"c"}
	replaced.CurrentIndex = 0
	require.NoError(t, s.SaveQueue(ctx, replaced))

	snap, err = s.LoadQueue(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, replaced, *snap)
}

func TestStore_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO audios (`+audioColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			audioArgs(newAudio("a"))...)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	ok, err := s.Has(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}
