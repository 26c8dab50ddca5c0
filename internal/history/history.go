package history

import (
	"context"
	"time"
)

// User is one row of the user registry.
type User struct {
	UserID         int64
	FirstName      string
	LastName       string
	Username       string
	FirstSeen      time.Time
	LastSeen       time.Time
	TotalDownloads int
}

// VideoRecord is one entry of the append-only download history.
type VideoRecord struct {
	UserID       int64
	URL          string
	Title        string
	Duration     time.Duration
	Format       string
	FileSize     int64
	DownloadedAt time.Time
	Success      bool
}

// UserRepository maintains the user registry.
type UserRepository interface {
	// TouchUser upserts the user's profile and reports whether this is the
	// first time the user has been seen.
	TouchUser(ctx context.Context, user User) (bool, error)
	IncrementDownloads(ctx context.Context, userID int64) error
	ListUsers(ctx context.Context, limit int) ([]User, error)
	CountUsers(ctx context.Context) (int, error)
}

// VideoRepository appends and reads download history.
type VideoRepository interface {
	RecordVideo(ctx context.Context, record VideoRecord) error
	RecentVideos(ctx context.Context, limit int) ([]VideoRecord, error)
	CountVideos(ctx context.Context) (int, error)
}
