package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/vidgate/videobot/internal/history"
)

type VideoRepository struct {
	db *sql.DB
}

func NewVideoRepository(dbConn *sql.DB) *VideoRepository {
	return &VideoRepository{db: dbConn}
}

func (r *VideoRepository) RecordVideo(ctx context.Context, record history.VideoRecord) error {
	downloadedAt := record.DownloadedAt
	if downloadedAt.IsZero() {
		downloadedAt = time.Now()
	}

	success := 0
	if record.Success {
		success = 1
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO videos (user_id, url, title, duration_seconds, format, file_size, downloaded_at, success)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, record.UserID, record.URL, record.Title, int(record.Duration.Seconds()),
		record.Format, record.FileSize, downloadedAt.UTC().Format(time.RFC3339), success)

	return err
}

func (r *VideoRepository) RecentVideos(ctx context.Context, limit int) ([]history.VideoRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, url, title, duration_seconds, format, file_size, downloaded_at, success
		FROM videos ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []history.VideoRecord

	for rows.Next() {
		var rec history.VideoRecord
		var durationSeconds, success int
		var downloadedAt string

		if err := rows.Scan(&rec.UserID, &rec.URL, &rec.Title, &durationSeconds, &rec.Format, &rec.FileSize, &downloadedAt, &success); err != nil {
			return nil, err
		}

		rec.Duration = time.Duration(durationSeconds) * time.Second
		rec.Success = success == 1
		rec.DownloadedAt, _ = time.Parse(time.RFC3339, downloadedAt)
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (r *VideoRepository) CountVideos(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM videos`).Scan(&count)

	return count, err
}
