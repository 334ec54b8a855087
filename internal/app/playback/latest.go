package playback

import "sync"

// Latest is a replay-latest, multi-subscriber value stream. Every subscriber
// gets the most recent value on subscribe and then each newer value. A
// subscriber that falls behind only ever sees the newest pending value.
type Latest[T any] struct {
	mu       sync.RWMutex
	value    T
	hasValue bool
	closed   bool
	subs     map[*Subscription[T]]struct{}
}

// NewLatest creates an empty stream.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{subs: make(map[*Subscription[T]]struct{})}
}

// NewLatestWith creates a stream holding an initial value.
func NewLatestWith[T any](initial T) *Latest[T] {
	l := NewLatest[T]()
	l.value = initial
	l.hasValue = true
	return l
}

// Publish stores v and offers it to every subscriber without blocking.
func (l *Latest[T]) Publish(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.value = v
	l.hasValue = true
	for s := range l.subs {
		s.offer(v)
	}
}

// Value returns the latest value and whether one was published.
func (l *Latest[T]) Value() (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, l.hasValue
}

// Subscribe registers a subscriber. The latest value, if any, is immediately
// available on the subscription's channel. Subscribing to a closed stream
// returns a subscription whose channel is already closed.
func (l *Latest[T]) Subscribe() *Subscription[T] {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := &Subscription[T]{ch: make(chan T, 1), owner: l}
	if l.closed {
		close(s.ch)
		s.done = true
		return s
	}
	if l.hasValue {
		s.ch <- l.value
	}
	l.subs[s] = struct{}{}
	return s
}

// SubscriberCount returns the number of active subscriptions.
func (l *Latest[T]) SubscriberCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}

// Close closes every subscription; later publishes are ignored.
func (l *Latest[T]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	for s := range l.subs {
		s.closeLocked()
	}
	l.subs = nil
}

// Subscription receives values from a Latest stream.
type Subscription[T any] struct {
	ch    chan T
	owner *Latest[T]
	done  bool // guarded by owner.mu
}

// Updates returns the channel of values. It is closed when the subscription
// or the stream is closed.
func (s *Subscription[T]) Updates() <-chan T {
	return s.ch
}

// Close unsubscribes and closes the updates channel.
func (s *Subscription[T]) Close() {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()

	if s.done {
		return
	}
	delete(s.owner.subs, s)
	s.closeLocked()
}

func (s *Subscription[T]) closeLocked() {
	if s.done {
		return
	}
	s.done = true
	close(s.ch)
}

// offer replaces any undelivered value with v.
// Must be called with owner.mu held.
func (s *Subscription[T]) offer(v T) {
	select {
	case s.ch <- v:
		return
	default:
	}
	// Drop the stale value
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- v:
	default:
	}
}
