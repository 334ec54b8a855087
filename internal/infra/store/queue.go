package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/queuesync/internal/domain/queue"
)

// SaveQueue replaces the persisted queue with snap.
func (s *Store) SaveQueue(ctx context.Context, snap queue.Snapshot) error {
	updatedAt := snap.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM queue_items`); err != nil {
			return errors.Wrap(err, "failed to clear queue items")
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO queue_state (id, title, current_index, position_ms, repeat_mode, shuffle_mode, updated_at)
			VALUES (1, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				current_index = excluded.current_index,
				position_ms = excluded.position_ms,
				repeat_mode = excluded.repeat_mode,
				shuffle_mode = excluded.shuffle_mode,
				updated_at = excluded.updated_at
		`, snap.Title.String(), snap.CurrentIndex, snap.Position.Milliseconds(),
			snap.RepeatMode, snap.ShuffleMode, updatedAt.Unix())
		if err != nil {
			return errors.Wrap(err, "failed to save queue state")
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO queue_items (position, audio_id) VALUES (?, ?)`)
		if err != nil {
			return errors.Wrap(err, "failed to prepare queue item insert")
		}
		defer stmt.Close()

		for i, id := range snap.IDs {
			if _, err := stmt.ExecContext(ctx, i, id); err != nil {
				return errors.Wrapf(err, "failed to save queue item %d", i)
			}
		}
		return nil
	})
}

// LoadQueue returns the persisted queue, or nil when none was saved.
func (s *Store) LoadQueue(ctx context.Context) (*queue.Snapshot, error) {
	var (
		snap       queue.Snapshot
		title      string
		positionMs int64
		updatedAt  int64
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT title, current_index, position_ms, repeat_mode, shuffle_mode, updated_at
		FROM queue_state WHERE id = 1
	`)
	err := row.Scan(&title, &snap.CurrentIndex, &positionMs, &snap.RepeatMode, &snap.ShuffleMode, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load queue state")
	}
	snap.Title = queue.ParseTitle(title)
	snap.Position = time.Duration(positionMs) * time.Millisecond
	snap.UpdatedAt = time.Unix(updatedAt, 0)

	rows, err := s.db.QueryContext(ctx, `SELECT audio_id FROM queue_items ORDER BY position`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load queue items")
	}
	defer rows.Close()

	snap.IDs = make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan queue item")
		}
		snap.IDs = append(snap.IDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to load queue items")
	}
	return &snap, nil
}
