package playback

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	buffered atomic.Int64
}

func (p *fakePlayer) BufferedPosition() time.Duration {
	return time.Duration(p.buffered.Load())
}

const testInterval = 10 * time.Millisecond

func TestProgressState_Current(t *testing.T) {
	tests := []struct {
		name     string
		state    ProgressState
		current  time.Duration
		progress float64
	}{
		{
			name:     "start",
			state:    ProgressState{Total: 100 * time.Second},
			current:  0,
			progress: 0,
		},
		{
			name:     "position plus elapsed",
			state:    ProgressState{Total: 100 * time.Second, Position: 20 * time.Second, Elapsed: 30 * time.Second},
			current:  50 * time.Second,
			progress: 0.5,
		},
		{
			name:     "capped at total",
			state:    ProgressState{Total: 100 * time.Second, Position: 90 * time.Second, Elapsed: 30 * time.Second},
			current:  100 * time.Second,
			progress: 1,
		},
		{
			name:     "unknown total",
			state:    ProgressState{Position: 5 * time.Second},
			current:  5 * time.Second,
			progress: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.current, tt.state.Current())
			assert.InDelta(t, tt.progress, tt.state.Progress(), 0.0001)
		})
	}
}

func TestProgressTicker_DoesNotStartWithoutPlayback(t *testing.T) {
	tests := []struct {
		name  string
		state PlaybackState
		meta  Metadata
	}{
		{name: "no state", state: NonePlaybackState, meta: nowPlaying("a")},
		{name: "nothing playing", state: PlaybackState{State: StatePlaying}, meta: NonePlaying},
		{name: "zero duration", state: PlaybackState{State: StatePlaying}, meta: Metadata{MediaID: "audio:a:0"}},
		{name: "paused", state: PlaybackState{State: StatePaused}, meta: nowPlaying("a")},
		{name: "buffering", state: PlaybackState{State: StateBuffering}, meta: nowPlaying("a")},
		{name: "stopped", state: PlaybackState{State: StateStopped}, meta: nowPlaying("a")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := NewProgressTicker(testInterval, nil)
			defer tk.Close()

			tk.Update(tt.state, tt.meta)
			assert.False(t, tk.Active())
			assert.Equal(t, 0, tk.Running())
		})
	}
}

func TestProgressTicker_PublishesInitialWhenPaused(t *testing.T) {
	player := &fakePlayer{}
	player.buffered.Store(int64(40 * time.Second))
	tk := NewProgressTicker(testInterval, player)
	defer tk.Close()

	tk.Update(PlaybackState{State: StatePaused, Position: 12 * time.Second}, nowPlaying("a"))

	p, ok := tk.Progress().Value()
	require.True(t, ok)
	assert.Equal(t, ProgressState{
		Total:    3 * time.Minute,
		Position: 12 * time.Second,
		Buffered: 40 * time.Second,
	}, p)
}

func TestProgressTicker_TicksAndResamplesBuffered(t *testing.T) {
	player := &fakePlayer{}
	tk := NewProgressTicker(testInterval, player)
	defer tk.Close()

	tk.Update(PlaybackState{State: StatePlaying, Position: 5 * time.Second}, nowPlaying("a"))
	require.True(t, tk.Active())

	player.buffered.Store(int64(90 * time.Second))

	require.Eventually(t, func() bool {
		p, _ := tk.Progress().Value()
		return p.Elapsed > 0 && p.Buffered == 90*time.Second
	}, time.Second, time.Millisecond)

	p, _ := tk.Progress().Value()
	assert.Equal(t, 5*time.Second, p.Position)
	assert.Equal(t, 3*time.Minute, p.Total)
	assert.Zero(t, p.Elapsed%testInterval)
}

func TestProgressTicker_RestartLeavesSingleTicker(t *testing.T) {
	tk := NewProgressTicker(testInterval, nil)
	defer tk.Close()

	sub := tk.Progress().Subscribe()
	defer sub.Close()

	first := Metadata{MediaID: "audio:a:0", Duration: time.Minute}
	second := Metadata{MediaID: "audio:b:0", Duration: 2 * time.Minute}
	playing := PlaybackState{State: StatePlaying}

	tk.Update(playing, first)
	tk.Update(playing, second)

	require.Eventually(t, func() bool { return tk.Running() == 1 }, time.Second, time.Millisecond)
	assert.Never(t, func() bool { return tk.Running() > 1 }, 10*testInterval, testInterval/2)

	// Once the second track shows up, the first track's ticker never emits again.
	seenSecond := false
	deadline := time.After(10 * testInterval)
	for {
		select {
		case p := <-sub.Updates():
			if p.Total == second.Duration {
				seenSecond = true
				continue
			}
			if seenSecond {
				t.Fatalf("stale tick from superseded ticker: %+v", p)
			}
		case <-deadline:
			assert.True(t, seenSecond)
			return
		}
	}
}

func TestProgressTicker_StopAndClose(t *testing.T) {
	tk := NewProgressTicker(testInterval, nil)

	tk.Update(PlaybackState{State: StatePlaying}, nowPlaying("a"))
	require.True(t, tk.Active())

	tk.Stop()
	assert.False(t, tk.Active())
	require.Eventually(t, func() bool { return tk.Running() == 0 }, time.Second, time.Millisecond)

	tk.Close()
	tk.Update(PlaybackState{State: StatePlaying}, nowPlaying("a"))
	assert.False(t, tk.Active())
}

func TestProgressTicker_DefaultInterval(t *testing.T) {
	tk := NewProgressTicker(0, nil)
	defer tk.Close()
	assert.Equal(t, DefaultProgressInterval, tk.interval)
}
