package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status of the download inside a session. Transitions are monotonic:
// preparing -> downloading -> finished, never backward.
type Status int

const (
	StatusPreparing Status = iota + 1
	StatusDownloading
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusPreparing:
		return "preparing"
	case StatusDownloading:
		return "downloading"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Progress is one observation of the download's state adjacent to its status.
// TotalBytes may be zero when the extractor does not know the final size.
type Progress struct {
	Status          Status
	DownloadedBytes int64
	TotalBytes      int64
	SpeedBytesSec   float64
	ETA             time.Duration
	UpdatedAt       time.Time
}

// Snapshot is the shared progress cell between the download worker (sole
// writer) and the progress reporter (sole reader).
type Snapshot struct {
	mu       sync.RWMutex
	progress Progress
}

// Publish records a new observation. Status never moves backward even if the
// writer reports updates out of order.
func (s *Snapshot) Publish(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Status < s.progress.Status {
		p.Status = s.progress.Status
	}
	p.UpdatedAt = time.Now()
	s.progress = p
}

// Load returns the latest observation.
func (s *Snapshot) Load() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.progress
}

// Session is the per-request state owned by the orchestrator for the
// lifetime of one download attempt. It does not survive a restart.
type Session struct {
	ID        string
	UserID    int64
	ChatID    int64
	URL       string
	Format    string
	Title     string
	Duration  time.Duration
	StartedAt time.Time
	Progress  *Snapshot
}

func New(userID, chatID int64, url, format, title string, duration time.Duration) *Session {
	s := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		ChatID:    chatID,
		URL:       url,
		Format:    format,
		Title:     title,
		Duration:  duration,
		StartedAt: time.Now(),
		Progress:  &Snapshot{},
	}
	s.Progress.Publish(Progress{Status: StatusPreparing})

	return s
}
