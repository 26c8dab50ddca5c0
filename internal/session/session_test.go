package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotStatusNeverMovesBackward(t *testing.T) {
	snap := &Snapshot{}

	snap.Publish(Progress{Status: StatusDownloading, DownloadedBytes: 10})
	snap.Publish(Progress{Status: StatusPreparing})

	p := snap.Load()
	assert.Equal(t, StatusDownloading, p.Status)
}

func TestSnapshotKeepsLatestObservation(t *testing.T) {
	snap := &Snapshot{}

	snap.Publish(Progress{Status: StatusDownloading, DownloadedBytes: 10, TotalBytes: 100})
	snap.Publish(Progress{Status: StatusDownloading, DownloadedBytes: 70, TotalBytes: 100})

	p := snap.Load()
	assert.Equal(t, int64(70), p.DownloadedBytes)
	assert.False(t, p.UpdatedAt.IsZero())
}

func TestNewSessionStartsPreparing(t *testing.T) {
	s := New(1, 2, "https://example.com/v", "worst", "a title", 90*time.Second)

	require.NotEmpty(t, s.ID)
	assert.Equal(t, StatusPreparing, s.Progress.Load().Status)
	assert.Equal(t, int64(1), s.UserID)
	assert.Equal(t, 90*time.Second, s.Duration)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "preparing", StatusPreparing.String())
	assert.Equal(t, "downloading", StatusDownloading.String())
	assert.Equal(t, "finished", StatusFinished.String())
}
