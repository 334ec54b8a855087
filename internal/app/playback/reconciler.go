package playback

import (
	"context"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/queuesync/internal/domain/audio"
	"github.com/osa030/queuesync/internal/domain/mediaid"
)

// AudioFinder looks up audio records by id. Missing ids are not an error.
type AudioFinder interface {
	FindAudios(ctx context.Context, ids []string) ([]audio.Audio, error)
}

// Resolve hydrates the queue's ids into audios and validates the session's
// reported index against the now-playing id.
func Resolve(ctx context.Context, finder AudioFinder, nowPlaying Metadata, state PlaybackState, q PlaybackQueue) PlaybackQueue {
	resolved := q
	resolved.Audios = hydrate(ctx, finder, mediaid.AudioIDs(q.IDs))
	resolved.CurrentIndex = ResolveIndex(resolved.Audios, state.CurrentIndex, nowPlaying.AudioID())
	return resolved
}

// ResolveIndex returns reported when the audio there is the now-playing one.
// On a mismatch it returns the position of the first audio with the
// now-playing id. An empty list or out-of-range reported index is unresolved.
// Unresolved is -1.
func ResolveIndex(audios []audio.Audio, reported int, nowPlayingID string) int {
	if len(audios) == 0 || reported < 0 || reported >= len(audios) {
		return -1
	}
	if audios[reported].ID == nowPlayingID {
		return reported
	}
	return audio.IndexOf(audios, nowPlayingID)
}

// hydrate returns the audios for ids in id order, dropping ids the finder
// does not know. Finder failures degrade to an empty result.
func hydrate(ctx context.Context, finder AudioFinder, ids []string) []audio.Audio {
	audios := make([]audio.Audio, 0, len(ids))
	if len(ids) == 0 || finder == nil {
		return audios
	}

	found, err := finder.FindAudios(ctx, ids)
	if err != nil {
		zlog.Warn().Msgf("playback: audio lookup failed, queue left unresolved: ids=%d err=%v", len(ids), err)
		return audios
	}

	byID := make(map[string]audio.Audio, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			audios = append(audios, a)
		}
	}
	return audios
}

// Reconciler keeps the latest now-playing, transport state and queue and
// publishes a resolved queue whenever any of them changes. Updates arriving
// while a resolution runs coalesce into a single follow-up resolution.
type Reconciler struct {
	finder AudioFinder

	mu         sync.Mutex
	nowPlaying Metadata
	state      PlaybackState
	queue      PlaybackQueue

	wake chan struct{}
	out  *Latest[PlaybackQueue]
}

// NewReconciler creates a reconciler. The first Run resolves the initial
// (empty) snapshot.
func NewReconciler(finder AudioFinder) *Reconciler {
	r := &Reconciler{
		finder:     finder,
		nowPlaying: NonePlaying,
		state:      NonePlaybackState,
		queue:      NewPlaybackQueue(nil, emptyTitle),
		wake:       make(chan struct{}, 1),
		out:        NewLatest[PlaybackQueue](),
	}
	r.signal()
	return r
}

// Queue returns the resolved queue stream.
func (r *Reconciler) Queue() *Latest[PlaybackQueue] {
	return r.out
}

// SetNowPlaying records new now-playing metadata.
func (r *Reconciler) SetNowPlaying(m Metadata) {
	r.mu.Lock()
	r.nowPlaying = m
	r.mu.Unlock()
	r.signal()
}

// SetPlaybackState records a new transport state.
func (r *Reconciler) SetPlaybackState(s PlaybackState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	r.signal()
}

// SetQueue records a new raw queue.
func (r *Reconciler) SetQueue(q PlaybackQueue) {
	r.mu.Lock()
	r.queue = q
	r.mu.Unlock()
	r.signal()
}

// Run resolves and publishes until ctx is done. It must be called once; it
// is the only writer of the resolved queue stream.
func (r *Reconciler) Run(ctx context.Context) error {
	defer r.out.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.wake:
			r.out.Publish(r.resolveLatest(ctx))
		}
	}
}

func (r *Reconciler) resolveLatest(ctx context.Context) PlaybackQueue {
	r.mu.Lock()
	nowPlaying, state, q := r.nowPlaying, r.state, r.queue
	r.mu.Unlock()

	resolved := Resolve(ctx, r.finder, nowPlaying, state, q)
	zlog.Debug().Msgf("playback: queue resolved: ids=%d audios=%d reported_index=%d index=%d",
		len(q.IDs), resolved.Len(), state.CurrentIndex, resolved.CurrentIndex)
	return resolved
}

// signal schedules a resolution without blocking; a pending one absorbs it.
func (r *Reconciler) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}
