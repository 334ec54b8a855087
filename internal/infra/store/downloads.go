package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/queuesync/internal/domain/audio"
)

// DownloadStatus represents the state of a download.
type DownloadStatus string

const (
	DownloadQueued    DownloadStatus = "queued"
	DownloadCompleted DownloadStatus = "completed"
	DownloadFailed    DownloadStatus = "failed"
)

// Download is an audio saved for offline playback.
type Download struct {
	Audio    audio.Audio
	FilePath string
	Status   DownloadStatus
}

// SaveDownload inserts or replaces a download record.
func (s *Store) SaveDownload(ctx context.Context, d Download) error {
	if !d.Audio.IsValid() {
		return errors.New("download has no audio id")
	}
	if d.Status == "" {
		d.Status = DownloadQueued
	}

	args := append(audioArgs(d.Audio), d.FilePath, string(d.Status))
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO downloads (`+audioColumns+`, file_path, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	return errors.Wrapf(err, "failed to save download: %s", d.Audio.ID)
}

// Downloads returns every download, most recent first.
func (s *Store) Downloads(ctx context.Context) ([]Download, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+audioColumns+`, file_path, status FROM downloads ORDER BY added_at DESC, id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list downloads")
	}
	defer rows.Close()

	downloads := make([]Download, 0)
	for rows.Next() {
		var (
			d          Download
			durationMs int64
			addedAt    int64
			status     string
		)
		err := rows.Scan(&d.Audio.ID, &d.Audio.Title, &d.Audio.Artist, &d.Audio.Album, &durationMs,
			&d.Audio.CoverURL, &d.Audio.URL, &d.Audio.Explicit, &addedAt, &d.FilePath, &status)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan download")
		}
		d.Audio.Duration = time.Duration(durationMs) * time.Millisecond
		d.Audio.AddedAt = time.Unix(addedAt, 0)
		d.Status = DownloadStatus(status)
		downloads = append(downloads, d)
	}
	return downloads, errors.Wrap(rows.Err(), "failed to list downloads")
}
