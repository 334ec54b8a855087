// Package notification provides the feed hub that broadcasts playback
// events to subscribers.
package notification

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

const sendTimeout = 500 * time.Millisecond

// Stream represents a notification stream for a subscriber. Send should not
// block for long; slow streams are skipped after a timeout.
type Stream interface {
	Send(*Message) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting. It keeps the
// latest message of each type so new subscribers start from current state.
// Broadcasts are serialized, so every subscriber receives messages in
// sequence order unless a send times out.
type Manager struct {
	broadcastMu   sync.Mutex
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	latest        map[MessageType]*Message
	sequenceNo    uint64
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		latest:        make(map[MessageType]*Message),
	}
}

// Subscribe adds a new subscription and returns the subscription ID. The
// latest message of every type is replayed to stream in sequence order
// before any newer broadcast.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}

	replay := make([]*Message, 0, len(m.latest))
	for _, msg := range m.latest {
		replay = append(replay, msg)
	}
	sort.Slice(replay, func(i, j int) bool {
		return replay[i].SequenceNo < replay[j].SequenceNo
	})
	for _, msg := range replay {
		if err := stream.Send(msg); err != nil {
			zlog.Warn().Msgf("notification: replay failed: subscription=%s type=%s: %v", id, msg.Type, err)
			break
		}
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Broadcast encodes payload as a message of type typ, records it as the
// latest of its type and sends it to all subscribers.
func (m *Manager) Broadcast(typ MessageType, payload any) error {
	msg, err := NewMessage(typ, payload)
	if err != nil {
		return err
	}

	m.broadcastMu.Lock()
	defer m.broadcastMu.Unlock()

	m.mu.Lock()
	m.sequenceNo++
	msg.SequenceNo = m.sequenceNo
	m.latest[typ] = msg
	// Copy subscriptions to avoid holding lock during sends
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	// Send to each subscriber in parallel with timeout
	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(msg)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Msgf("notification: send failed: subscription=%s type=%s: %v", s.id, typ, err)
				}
			case <-ctx.Done():
				zlog.Warn().Msgf("notification: send timed out: subscription=%s type=%s", s.id, typ)
			}
		}(sub)
	}

	// Wait for all sends to complete or timeout
	wg.Wait()
	return nil
}

// Send sends a message to a specific subscriber without recording it.
func (m *Manager) Send(subscriptionID string, msg *Message) error {
	m.mu.RLock()
	sub, ok := m.subscriptions[subscriptionID]
	m.mu.RUnlock()
	if !ok {
		return errors.Newf("subscription not found: %s", subscriptionID)
	}
	return sub.stream.Send(msg)
}

// Latest returns the latest broadcast message of type typ, or nil.
func (m *Manager) Latest(typ MessageType) *Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest[typ]
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}

// NewMessage creates an unsequenced message carrying payload.
func NewMessage(typ MessageType, payload any) (*Message, error) {
	msg := &Message{Type: typ, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode %s payload", typ)
		}
		msg.Data = data
	}
	return msg, nil
}
