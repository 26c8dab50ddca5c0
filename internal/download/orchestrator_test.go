package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidgate/videobot/internal/engine"
	"github.com/vidgate/videobot/internal/history"
	"github.com/vidgate/videobot/internal/limits"
)

type memQuotaStore struct {
	mu     sync.Mutex
	record *limits.Record
}

func (s *memQuotaStore) Load(ctx context.Context) *limits.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.record == nil {
		return limits.NewRecord(time.Now())
	}
	return s.record
}

func (s *memQuotaStore) Save(ctx context.Context, record *limits.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record = record
	return nil
}

type fakeEngine struct {
	downloadFn func(ctx context.Context, req engine.Request, onProgress func(engine.Progress)) error
}

func (e *fakeEngine) Probe(ctx context.Context, url string) (*engine.Metadata, error) {
	return &engine.Metadata{Title: "probe", Duration: time.Minute}, nil
}

func (e *fakeEngine) Download(ctx context.Context, req engine.Request, onProgress func(engine.Progress)) error {
	return e.downloadFn(ctx, req, onProgress)
}

type fakeMessenger struct {
	mu       sync.Mutex
	edits    []string
	videos   []string
	failSend bool
}

func (m *fakeMessenger) Edit(chatID int64, messageID int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.edits = append(m.edits, text)
	return nil
}

func (m *fakeMessenger) SendVideo(chatID int64, path, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failSend {
		return errors.New("telegram says no")
	}

	m.videos = append(m.videos, path)
	return nil
}

func (m *fakeMessenger) lastEdit() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.edits) == 0 {
		return ""
	}
	return m.edits[len(m.edits)-1]
}

type fakeVideoRepo struct {
	mu      sync.Mutex
	records []history.VideoRecord
}

func (r *fakeVideoRepo) RecordVideo(ctx context.Context, record history.VideoRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, record)
	return nil
}

func (r *fakeVideoRepo) RecentVideos(ctx context.Context, limit int) ([]history.VideoRecord, error) {
	return nil, nil
}

func (r *fakeVideoRepo) CountVideos(ctx context.Context) (int, error) { return len(r.records), nil }

type fakeUserRepo struct {
	mu         sync.Mutex
	increments []int64
}

func (r *fakeUserRepo) TouchUser(ctx context.Context, user history.User) (bool, error) {
	return false, nil
}

func (r *fakeUserRepo) IncrementDownloads(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.increments = append(r.increments, userID)
	return nil
}

func (r *fakeUserRepo) ListUsers(ctx context.Context, limit int) ([]history.User, error) {
	return nil, nil
}

func (r *fakeUserRepo) CountUsers(ctx context.Context) (int, error) { return 0, nil }

// writeOutput simulates the extractor producing a file for the session's
// output template.
func writeOutput(t *testing.T, template string, size int) string {
	t.Helper()

	path := strings.Replace(template, "%(ext)s", "mp4", 1)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

type fixture struct {
	orch   *Orchestrator
	ctrl   *limits.Controller
	msgr   *fakeMessenger
	videos *fakeVideoRepo
	users  *fakeUserRepo
	dir    string
}

func newFixture(t *testing.T, eng engine.Engine, mutate func(*Config)) *fixture {
	t.Helper()

	ctrl := limits.NewController(context.Background(), limits.Thresholds{
		MaxConcurrentDownloads: 2,
		MaxUsersPerDay:         2,
		MaxVideosPerUser:       2,
		MaxTotalDailyDownloads: 3,
	}, &memQuotaStore{})

	msgr := &fakeMessenger{}
	videos := &fakeVideoRepo{}
	users := &fakeUserRepo{}

	cfg := Config{
		DownloadsDir:           t.TempDir(),
		MaxFileSize:            1024,
		Timeout:                5 * time.Second,
		ProgressPollInterval:   5 * time.Millisecond,
		ProgressRenderInterval: 10 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	return &fixture{
		orch:   NewOrchestrator(ctrl, eng, videos, users, msgr, cfg),
		ctrl:   ctrl,
		msgr:   msgr,
		videos: videos,
		users:  users,
		dir:    cfg.DownloadsDir,
	}
}

func testRequest() Request {
	return Request{
		UserID:    1,
		ChatID:    5,
		MessageID: 9,
		URL:       "https://example.com/watch?v=abc",
		Quality:   "360p",
		Title:     "My Video",
		Duration:  time.Minute,
	}
}

func TestRunSuccessCommitsQuota(t *testing.T) {
	eng := &fakeEngine{
		downloadFn: func(ctx context.Context, req engine.Request, onProgress func(engine.Progress)) error {
			onProgress(engine.Progress{DownloadedBytes: 50, TotalBytes: 100})
			onProgress(engine.Progress{DownloadedBytes: 100, TotalBytes: 100})
			writeOutput(t, req.OutputTemplate, 100)
			return nil
		},
	}

	f := newFixture(t, eng, nil)
	ctx := context.Background()

	require.NoError(t, f.orch.Run(ctx, testRequest()))

	stats := f.ctrl.Stats(ctx)
	assert.Equal(t, 1, stats.DownloadsToday)
	assert.Equal(t, 1, stats.TotalDownloadsAllTime)
	assert.Zero(t, stats.ActiveDownloads)

	require.Len(t, f.msgr.videos, 1)
	assert.Contains(t, f.msgr.lastEdit(), "uploaded successfully")

	require.Len(t, f.videos.records, 1)
	assert.True(t, f.videos.records[0].Success)
	assert.Equal(t, int64(100), f.videos.records[0].FileSize)
	assert.Equal(t, []int64{1}, f.users.increments)

	// the working file is cleaned up after upload
	entries, _ := os.ReadDir(filepath.Join(f.dir, "1"))
	assert.Empty(t, entries)
}

func TestRunEngineFailureReleasesSlotWithoutQuota(t *testing.T) {
	eng := &fakeEngine{
		downloadFn: func(ctx context.Context, req engine.Request, onProgress func(engine.Progress)) error {
			onProgress(engine.Progress{DownloadedBytes: 10})
			return errors.New("extraction blew up")
		},
	}

	f := newFixture(t, eng, nil)
	ctx := context.Background()

	err := f.orch.Run(ctx, testRequest())

	var serr *SessionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, FailDownloadFailed, serr.Reason)

	stats := f.ctrl.Stats(ctx)
	assert.Zero(t, stats.DownloadsToday)
	assert.Zero(t, stats.ActiveDownloads)
	assert.Zero(t, f.ctrl.UserDownloadsToday(ctx, 1))

	// failure is still recorded in history
	require.Len(t, f.videos.records, 1)
	assert.False(t, f.videos.records[0].Success)
	assert.Empty(t, f.users.increments)

	// the user can try again immediately
	assert.True(t, f.ctrl.Admit(ctx, 1).Allowed)
}

func TestRunFileNotFound(t *testing.T) {
	eng := &fakeEngine{
		downloadFn: func(ctx context.Context, req engine.Request, onProgress func(engine.Progress)) error {
			return nil // reports success but produces nothing
		},
	}

	f := newFixture(t, eng, nil)

	err := f.orch.Run(context.Background(), testRequest())

	var serr *SessionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, FailFileNotFound, serr.Reason)
	assert.Contains(t, f.msgr.lastEdit(), "file not found")
}

func TestRunTooLargeDeletesFile(t *testing.T) {
	eng := &fakeEngine{
		downloadFn: func(ctx context.Context, req engine.Request, onProgress func(engine.Progress)) error {
			writeOutput(t, req.OutputTemplate, 100)
			return nil
		},
	}

	f := newFixture(t, eng, func(cfg *Config) { cfg.MaxFileSize = 10 })
	ctx := context.Background()

	err := f.orch.Run(ctx, testRequest())

	var serr *SessionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, FailTooLarge, serr.Reason)

	assert.Zero(t, f.ctrl.Stats(ctx).DownloadsToday)
	assert.Empty(t, f.msgr.videos)

	userDir := filepath.Join(f.dir, "1")
	entries, _ := os.ReadDir(userDir)
	assert.Empty(t, entries)
}

func TestRunTimeout(t *testing.T) {
	eng := &fakeEngine{
		downloadFn: func(ctx context.Context, req engine.Request, onProgress func(engine.Progress)) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}

	f := newFixture(t, eng, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })
	ctx := context.Background()

	err := f.orch.Run(ctx, testRequest())

	var serr *SessionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, FailTimeout, serr.Reason)

	stats := f.ctrl.Stats(ctx)
	assert.Zero(t, stats.ActiveDownloads)
	assert.Zero(t, stats.DownloadsToday)
}

func TestRunUploadFailure(t *testing.T) {
	eng := &fakeEngine{
		downloadFn: func(ctx context.Context, req engine.Request, onProgress func(engine.Progress)) error {
			writeOutput(t, req.OutputTemplate, 100)
			return nil
		},
	}

	f := newFixture(t, eng, nil)
	f.msgr.failSend = true
	ctx := context.Background()

	err := f.orch.Run(ctx, testRequest())

	var serr *SessionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, FailUploadFailed, serr.Reason)

	assert.Zero(t, f.ctrl.Stats(ctx).DownloadsToday)
	require.Len(t, f.videos.records, 1)
	assert.False(t, f.videos.records[0].Success)
}

func TestRunQuotaDenied(t *testing.T) {
	eng := &fakeEngine{
		downloadFn: func(ctx context.Context, req engine.Request, onProgress func(engine.Progress)) error {
			t.Fatal("engine must not run for a denied session")
			return nil
		},
	}

	f := newFixture(t, eng, nil)
	ctx := context.Background()

	// hold the user's slot so admission fails
	require.True(t, f.ctrl.Admit(ctx, 1).Allowed)

	err := f.orch.Run(ctx, testRequest())

	var serr *SessionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, FailQuotaDenied, serr.Reason)
	assert.Contains(t, f.msgr.lastEdit(), "active download")

	// the denied attempt must not release the held slot
	assert.Equal(t, 1, f.ctrl.Stats(ctx).ActiveDownloads)
	assert.Empty(t, f.videos.records)
}

func TestCaptionTitleKeepsRuneBoundaries(t *testing.T) {
	long := strings.Repeat("タイトル", 40)

	out := truncate(long, 100)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, 100, utf8.RuneCountInString(out))

	assert.Equal(t, "short", truncate("short", 100))
	assert.True(t, utf8.ValidString(truncate("видео без границ байтов в заголовке", 20)))
}

func TestRunProgressReachesReporter(t *testing.T) {
	release := make(chan struct{})

	eng := &fakeEngine{
		downloadFn: func(ctx context.Context, req engine.Request, onProgress func(engine.Progress)) error {
			onProgress(engine.Progress{DownloadedBytes: 30, TotalBytes: 100})
			select {
			case <-release:
			case <-ctx.Done():
				return ctx.Err()
			}
			onProgress(engine.Progress{DownloadedBytes: 100, TotalBytes: 100})
			writeOutput(t, req.OutputTemplate, 100)
			return nil
		},
	}

	f := newFixture(t, eng, nil)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	require.NoError(t, f.orch.Run(context.Background(), testRequest()))

	var sawBar, sawFinished bool
	f.msgr.mu.Lock()
	for _, e := range f.msgr.edits {
		if strings.Contains(e, "Downloading") {
			sawBar = true
		}
		if strings.Contains(e, "Download finished") {
			sawFinished = true
		}
	}
	f.msgr.mu.Unlock()

	assert.True(t, sawBar, "expected at least one downloading render")
	assert.True(t, sawFinished, "expected the final finished render")
}
