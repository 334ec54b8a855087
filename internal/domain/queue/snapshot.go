package queue

import "time"

// Snapshot is the persisted form of a session queue.
type Snapshot struct {
	IDs          []string      // Audio ids in queue order
	Title        Title         // Queue origin
	CurrentIndex int           // -1 when nothing is selected
	Position     time.Duration // Position inside the current item
	RepeatMode   string        // "none", "one" or "all"
	ShuffleMode  string        // "none" or "all"
	UpdatedAt    time.Time
}

// HasCurrent reports whether CurrentIndex points into IDs.
func (s Snapshot) HasCurrent() bool {
	return s.CurrentIndex >= 0 && s.CurrentIndex < len(s.IDs)
}
