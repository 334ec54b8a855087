package session

import (
	"sync"
	"time"

	"github.com/osa030/queuesync/internal/domain/queue"
)

const defaultSaveDebounce = 500 * time.Millisecond

// debouncer coalesces queue snapshots and saves only the latest one once no
// newer snapshot arrived for the debounce delay.
type debouncer struct {
	delay time.Duration
	save  func(queue.Snapshot) error

	mu      sync.Mutex
	timer   *time.Timer
	pending *queue.Snapshot
}

func newDebouncer(delay time.Duration, save func(queue.Snapshot) error) *debouncer {
	if delay <= 0 {
		delay = defaultSaveDebounce
	}
	return &debouncer{delay: delay, save: save}
}

func (d *debouncer) schedule(snap queue.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = &snap
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		_ = d.flush()
	})
}

// flush saves the pending snapshot, if any.
func (d *debouncer) flush() error {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	if pending == nil {
		return nil
	}
	return d.save(*pending)
}
