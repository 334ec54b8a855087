package notification

import (
	"context"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/queuesync/internal/app/playback"
)

// Relay broadcasts every observable value of conn until ctx is done.
func Relay(ctx context.Context, m *Manager, conn *playback.Connection) {
	var wg sync.WaitGroup
	start := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	start(func() {
		forward(ctx, m, TypeConnected, conn.Connected(), func(v bool) any {
			return ConnectedPayload{Connected: v}
		})
	})
	start(func() {
		forward(ctx, m, TypeQueue, conn.Queue(), func(v playback.PlaybackQueue) any {
			return NewQueuePayload(v)
		})
	})
	start(func() {
		forward(ctx, m, TypeProgress, conn.Progress(), func(v playback.ProgressState) any {
			return NewProgressPayload(v)
		})
	})
	start(func() {
		forward(ctx, m, TypeState, conn.PlaybackState(), func(v playback.PlaybackState) any {
			return NewStatePayload(v)
		})
	})
	start(func() {
		forward(ctx, m, TypeNowPlaying, conn.NowPlaying(), func(v playback.Metadata) any {
			return NewNowPlayingPayload(v)
		})
	})
	start(func() {
		forward(ctx, m, TypeMode, conn.Mode(), func(v playback.PlaybackMode) any {
			return NewModePayload(v)
		})
	})

	wg.Wait()
}

func forward[T any](ctx context.Context, m *Manager, typ MessageType, src *playback.Latest[T], convert func(T) any) {
	sub := src.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-sub.Updates():
			if !ok {
				return
			}
			if err := m.Broadcast(typ, convert(v)); err != nil {
				zlog.Error().Msgf("notification: broadcast failed: type=%s: %v", typ, err)
			}
		}
	}
}
