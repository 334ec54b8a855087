package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/queuesync/internal/domain/audio"
)

const audioColumns = `id, title, artist, album, duration_ms, cover_url, url, explicit, added_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAudio(row scanner) (audio.Audio, error) {
	var (
		a          audio.Audio
		durationMs int64
		addedAt    int64
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Artist, &a.Album, &durationMs, &a.CoverURL, &a.URL, &a.Explicit, &addedAt); err != nil {
		return audio.Audio{}, err
	}
	a.Duration = time.Duration(durationMs) * time.Millisecond
	a.AddedAt = time.Unix(addedAt, 0)
	return a, nil
}

func audioArgs(a audio.Audio) []any {
	addedAt := a.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now()
	}
	return []any{a.ID, a.Title, a.Artist, a.Album, a.Duration.Milliseconds(), a.CoverURL, a.URL, a.Explicit, addedAt.Unix()}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// FindAudios returns the audios for ids in the order of ids. Ids missing from
// the audios table are looked up in downloads; ids found in neither are
// dropped. Duplicate ids yield duplicate records.
func (s *Store) FindAudios(ctx context.Context, ids []string) ([]audio.Audio, error) {
	if len(ids) == 0 {
		return []audio.Audio{}, nil
	}

	unique := uniqueIDs(ids)
	found, err := s.audiosByID(ctx, "audios", unique)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, id := range unique {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		downloaded, err := s.audiosByID(ctx, "downloads", missing)
		if err != nil {
			return nil, err
		}
		for id, a := range downloaded {
			found[id] = a
		}
	}

	result := make([]audio.Audio, 0, len(ids))
	for _, id := range ids {
		if a, ok := found[id]; ok {
			result = append(result, a)
		}
	}
	return result, nil
}

func (s *Store) audiosByID(ctx context.Context, table string, ids []string) (map[string]audio.Audio, error) {
	found := make(map[string]audio.Audio, len(ids))
	// Stay well below SQLite's bound parameter limit.
	const chunk = 500
	for start := 0; start < len(ids); start += chunk {
		part := ids[start:min(start+chunk, len(ids))]
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+audioColumns+` FROM `+table+` WHERE id IN (`+placeholders(len(part))+`)`,
			idArgs(part)...,
		)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to query %s", table)
		}
		for rows.Next() {
			a, err := scanAudio(rows)
			if err != nil {
				rows.Close()
				return nil, errors.Wrapf(err, "failed to scan %s row", table)
			}
			found[a.ID] = a
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", table)
		}
	}
	return found, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}

// Upsert inserts or replaces audios.
func (s *Store) Upsert(ctx context.Context, audios []audio.Audio) error {
	return s.insertAudios(ctx, audios, `INSERT OR REPLACE`)
}

// InsertMissing inserts audios that are not stored yet and leaves existing
// records untouched.
func (s *Store) InsertMissing(ctx context.Context, audios []audio.Audio) error {
	return s.insertAudios(ctx, audios, `INSERT OR IGNORE`)
}

func (s *Store) insertAudios(ctx context.Context, audios []audio.Audio, verb string) error {
	if len(audios) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, verb+` INTO audios (`+audioColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return errors.Wrap(err, "failed to prepare insert")
		}
		defer stmt.Close()

		for _, a := range audios {
			if !a.IsValid() {
				continue
			}
			if _, err := stmt.ExecContext(ctx, audioArgs(a)...); err != nil {
				return errors.Wrapf(err, "failed to insert audio: %s", a.ID)
			}
		}
		return nil
	})
}

// Get returns the audio with the given id.
func (s *Store) Get(ctx context.Context, id string) (audio.Audio, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+audioColumns+` FROM audios WHERE id = ?`, id)
	a, err := scanAudio(row)
	if errors.Is(err, sql.ErrNoRows) {
		return audio.Audio{}, errors.Wrapf(ErrNotFound, "audio %s", id)
	}
	if err != nil {
		return audio.Audio{}, errors.Wrapf(err, "failed to get audio: %s", id)
	}
	return a, nil
}

// Has reports whether the audio is stored.
func (s *Store) Has(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audios WHERE id = ?`, id).Scan(&n); err != nil {
		return false, errors.Wrapf(err, "failed to check audio: %s", id)
	}
	return n > 0, nil
}

// Delete removes the audio with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audios WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete audio: %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrNotFound, "audio %s", id)
	}
	return nil
}

// DeleteAll removes every audio and returns how many were removed.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audios`)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete audios")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// List returns audios, most recently added first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]audio.Audio, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+audioColumns+` FROM audios ORDER BY added_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list audios")
	}
	defer rows.Close()

	audios := make([]audio.Audio, 0)
	for rows.Next() {
		a, err := scanAudio(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan audio")
		}
		audios = append(audios, a)
	}
	return audios, errors.Wrap(rows.Err(), "failed to list audios")
}

// Count returns the number of stored audios.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audios`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count audios")
	}
	return n, nil
}
