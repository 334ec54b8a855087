package playback

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultProgressInterval is the progress tick interval.
const DefaultProgressInterval = 1000 * time.Millisecond

// BufferedPositioner reports how far the live player has buffered.
type BufferedPositioner interface {
	BufferedPosition() time.Duration
}

// ProgressState is the playback progress of the now-playing item.
type ProgressState struct {
	Total    time.Duration // Track duration
	Position time.Duration // Position reported with the transport state
	Elapsed  time.Duration // Time elapsed since Position was reported
	Buffered time.Duration // Buffered position sampled from the player
}

// Current returns the estimated position, capped at Total.
func (p ProgressState) Current() time.Duration {
	current := p.Position + p.Elapsed
	if p.Total > 0 && current > p.Total {
		return p.Total
	}
	return current
}

// Progress returns Current as a fraction of Total in [0, 1].
func (p ProgressState) Progress() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Current()) / float64(p.Total)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// ProgressTicker publishes progress on a fixed interval while the transport
// state is playing and not buffering. Every Update cancels the running
// ticker before deciding whether to start a new one, so at most one ticker
// is active and no tick of a superseded ticker is published.
type ProgressTicker struct {
	interval time.Duration
	player   BufferedPositioner
	out      *Latest[ProgressState]

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	closed     bool

	running atomic.Int32
}

// NewProgressTicker creates a ticker. A non-positive interval uses
// DefaultProgressInterval; player may be nil.
func NewProgressTicker(interval time.Duration, player BufferedPositioner) *ProgressTicker {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &ProgressTicker{
		interval: interval,
		player:   player,
		out:      NewLatestWith(ProgressState{}),
	}
}

// Progress returns the progress stream.
func (t *ProgressTicker) Progress() *Latest[ProgressState] {
	return t.out
}

// Update restarts progress tracking for a new (state, metadata) pair.
func (t *ProgressTicker) Update(state PlaybackState, nowPlaying Metadata) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()

	duration := nowPlaying.Duration
	if t.closed || state.IsNone() || nowPlaying.IsNone() || duration < time.Millisecond {
		return
	}

	initial := ProgressState{
		Total:    duration,
		Position: state.Position,
		Buffered: t.buffered(),
	}
	t.out.Publish(initial)

	if state.IsPlaying() && !state.IsBuffering() {
		t.startLocked(initial)
	}
}

// Stop cancels the running ticker, if any.
func (t *ProgressTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Close stops the ticker and closes the progress stream.
func (t *ProgressTicker) Close() {
	t.mu.Lock()
	t.closed = true
	t.stopLocked()
	t.mu.Unlock()

	t.out.Close()
}

// Active reports whether a ticker is scheduled.
func (t *ProgressTicker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// Running returns the number of ticker goroutines still alive.
func (t *ProgressTicker) Running() int {
	return int(t.running.Load())
}

// stopLocked must be called with t.mu held.
func (t *ProgressTicker) stopLocked() {
	t.generation++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// startLocked must be called with t.mu held.
func (t *ProgressTicker) startLocked(initial ProgressState) {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.running.Add(1)
	go t.run(ctx, t.generation, initial)
}

func (t *ProgressTicker) run(ctx context.Context, generation uint64, initial ProgressState) {
	defer t.running.Add(-1)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	var ticks int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ticks++
			next := initial
			next.Elapsed = t.interval * time.Duration(ticks)
			next.Buffered = t.buffered()
			if !t.publishIfCurrent(generation, next) {
				return
			}
		}
	}
}

func (t *ProgressTicker) publishIfCurrent(generation uint64, p ProgressState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if generation != t.generation {
		return false
	}
	t.out.Publish(p)
	return true
}

func (t *ProgressTicker) buffered() time.Duration {
	if t.player == nil {
		return 0
	}
	return t.player.BufferedPosition()
}
