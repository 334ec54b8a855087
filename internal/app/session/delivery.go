package session

import (
	"context"
	"sync"

	"github.com/osa030/queuesync/internal/app/playback"
)

// mailbox holds the latest undelivered value of one signal. Posting never
// blocks; a value not yet delivered is replaced by the newer one.
type mailbox[T any] struct {
	mu      sync.Mutex
	value   T
	pending bool
	wake    chan struct{}
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{wake: make(chan struct{}, 1)}
}

func (m *mailbox[T]) post(v T) {
	m.mu.Lock()
	m.value = v
	m.pending = true
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox[T]) take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.value, m.pending
	var zero T
	m.value = zero
	m.pending = false
	return v, ok
}

func (m *mailbox[T]) run(ctx context.Context, deliver func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.wake:
			if v, ok := m.take(); ok {
				deliver(v)
			}
		}
	}
}

// delivery runs one goroutine per signal kind, so metadata, state, queue and
// mode callbacks reach the connection independently and in no fixed order.
type delivery struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metadata *mailbox[playback.Metadata]
	state    *mailbox[playback.PlaybackState]
	queue    *mailbox[playback.PlaybackQueue]
	mode     *mailbox[playback.PlaybackMode]
}

func startDelivery(cb playback.SessionCallback) *delivery {
	ctx, cancel := context.WithCancel(context.Background())
	d := &delivery{
		cancel:   cancel,
		metadata: newMailbox[playback.Metadata](),
		state:    newMailbox[playback.PlaybackState](),
		queue:    newMailbox[playback.PlaybackQueue](),
		mode:     newMailbox[playback.PlaybackMode](),
	}

	spawn(ctx, &d.wg, d.metadata, func(m playback.Metadata) { cb.OnMetadataChanged(&m) })
	spawn(ctx, &d.wg, d.state, func(s playback.PlaybackState) { cb.OnPlaybackStateChanged(&s) })
	spawn(ctx, &d.wg, d.queue, cb.OnQueueChanged)
	spawn(ctx, &d.wg, d.mode, func(m playback.PlaybackMode) {
		cb.OnRepeatModeChanged(m.Repeat)
		cb.OnShuffleModeChanged(m.Shuffle)
	})
	return d
}

func spawn[T any](ctx context.Context, wg *sync.WaitGroup, m *mailbox[T], deliver func(T)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.run(ctx, deliver)
	}()
}

// stop cancels delivery and waits for in-flight callbacks to return.
func (d *delivery) stop() {
	if d == nil {
		return
	}
	d.cancel()
	d.wg.Wait()
}
