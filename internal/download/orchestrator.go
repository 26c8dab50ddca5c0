package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/vidgate/videobot/internal/engine"
	"github.com/vidgate/videobot/internal/history"
	"github.com/vidgate/videobot/internal/limits"
	"github.com/vidgate/videobot/internal/logctx"
	"github.com/vidgate/videobot/internal/progress"
	"github.com/vidgate/videobot/internal/session"
)

// Messenger is the slice of the chat transport the orchestrator needs.
type Messenger interface {
	progress.Editor
	SendVideo(chatID int64, path, caption string) error
}

// Config holds the orchestrator's resource policy.
type Config struct {
	DownloadsDir string
	MaxFileSize  int64
	Timeout      time.Duration

	ProgressPollInterval   time.Duration
	ProgressRenderInterval time.Duration
}

// Request is one admitted-or-not download attempt. MessageID is the chat
// message the orchestrator and reporter edit with status updates.
type Request struct {
	UserID    int64
	ChatID    int64
	MessageID int
	URL       string
	Quality   string
	Title     string
	Duration  time.Duration
}

// Orchestrator drives a download session end to end: admission, the
// background download with its progress reporter, verification, upload, and
// the quota commit.
type Orchestrator struct {
	limits *limits.Controller
	engine engine.Engine
	videos history.VideoRepository
	users  history.UserRepository
	msgr   Messenger
	cfg    Config
}

func NewOrchestrator(ctrl *limits.Controller, eng engine.Engine, videos history.VideoRepository, users history.UserRepository, msgr Messenger, cfg Config) *Orchestrator {
	return &Orchestrator{
		limits: ctrl,
		engine: eng,
		videos: videos,
		users:  users,
		msgr:   msgr,
		cfg:    cfg,
	}
}

// Run executes one session. The returned error is a *SessionError when the
// session ended in a failure state; the user has already been told either way.
func (o *Orchestrator) Run(ctx context.Context, req Request) error {
	logger := logctx.LoggerFromContext(ctx).With("user_id", req.UserID, "url", req.URL)
	ctx = logctx.WithLogger(ctx, logger)

	dec := o.limits.Admit(ctx, req.UserID)
	if !dec.Allowed {
		o.edit(req, dec.Message(o.limits.Limits()))
		return &SessionError{Reason: FailQuotaDenied, UserText: dec.Message(o.limits.Limits())}
	}

	sess := session.New(req.UserID, req.ChatID, req.URL, engine.FormatSelector(req.Quality), req.Title, req.Duration)
	logger = logger.With("session_id", sess.ID)
	ctx = logctx.WithLogger(ctx, logger)

	fileSize, serr := o.runAdmitted(ctx, sess, req)

	// The slot release is the one guaranteed step: it must happen on every
	// exit path, success or not.
	o.limits.Complete(ctx, req.UserID, serr == nil)

	o.record(ctx, req, fileSize, serr == nil)

	if serr != nil {
		logger.Error("download session failed", "reason", string(serr.Reason), "err", serr.Err)
		o.edit(req, serr.UserText)
		return serr
	}

	remaining := o.limits.Limits().MaxVideosPerUser - o.limits.UserDownloadsToday(ctx, req.UserID)
	o.edit(req, fmt.Sprintf("✅ Video uploaded successfully!\n\n👤 Your remaining today: %d videos", remaining))
	logger.Info("download session completed", "file_size", fileSize)

	return nil
}

// runAdmitted covers Preparing through Uploading. It returns the uploaded
// file size on success.
func (o *Orchestrator) runAdmitted(ctx context.Context, sess *session.Session, req Request) (int64, *SessionError) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	workDir := filepath.Join(o.cfg.DownloadsDir, strconv.FormatInt(req.UserID, 10))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return 0, &SessionError{
			Reason:   FailDownloadFailed,
			UserText: "❌ Oops! I couldn't prepare the download. Please try again later!",
			Err:      err,
		}
	}

	stem := fmt.Sprintf("%s_%d", SafeTitle(sess.Title), sess.StartedAt.Unix())
	defer removeSessionFiles(workDir, stem)

	if serr := o.download(ctx, sess, req, workDir, stem); serr != nil {
		return 0, serr
	}

	// Verifying: the extractor picks the extension, so locate the file by
	// its deterministic stem.
	path, ok := findProducedFile(workDir, stem)
	if !ok {
		return 0, &SessionError{
			Reason:   FailFileNotFound,
			UserText: "❌ Download completed but file not found.",
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, &SessionError{
			Reason:   FailFileNotFound,
			UserText: "❌ Download completed but file not found.",
			Err:      err,
		}
	}

	if info.Size() > o.cfg.MaxFileSize {
		return 0, &SessionError{
			Reason: FailTooLarge,
			UserText: fmt.Sprintf("❌ File too large: %s\n📏 Limit: %s\nTry the lowest quality format.",
				humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(o.cfg.MaxFileSize))),
		}
	}

	o.edit(req, fmt.Sprintf("📁 Downloaded! Size: %s\n⬆️ Uploading to Telegram...", humanize.Bytes(uint64(info.Size()))))

	caption := fmt.Sprintf("🎥 %s\n📏 Size: %s\n⏳ Duration: %s\n📂 Format: %s",
		truncate(sess.Title, 100), humanize.Bytes(uint64(info.Size())), progress.FormatClock(sess.Duration), req.Quality)

	if err := o.msgr.SendVideo(req.ChatID, path, caption); err != nil {
		return 0, &SessionError{
			Reason:   FailUploadFailed,
			UserText: "❌ Upload failed. Please try again later.",
			Err:      err,
		}
	}

	return info.Size(), nil
}

// download runs the engine in a background goroutine with the progress
// reporter alongside it. Both finish before it returns.
func (o *Orchestrator) download(ctx context.Context, sess *session.Session, req Request, workDir, stem string) *SessionError {
	reporter := progress.NewReporter(o.msgr, o.cfg.ProgressPollInterval, o.cfg.ProgressRenderInterval)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		engReq := engine.Request{
			URL:            sess.URL,
			Format:         sess.Format,
			OutputTemplate: filepath.Join(workDir, stem+".%(ext)s"),
		}

		err := o.engine.Download(gctx, engReq, func(p engine.Progress) {
			sess.Progress.Publish(session.Progress{
				Status:          session.StatusDownloading,
				DownloadedBytes: p.DownloadedBytes,
				TotalBytes:      p.TotalBytes,
				SpeedBytesSec:   p.SpeedBytesSec,
				ETA:             p.ETA,
			})
		})
		if err != nil {
			return err
		}

		last := sess.Progress.Load()
		last.Status = session.StatusFinished
		sess.Progress.Publish(last)

		return nil
	})

	g.Go(func() error {
		// The reporter exits on its own when it observes the finished
		// status, or with the group context when the download dies first.
		reporter.Run(gctx, sess.Progress, req.ChatID, req.MessageID, sess.StartedAt)
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &SessionError{
				Reason:   FailTimeout,
				UserText: "❌ Download timed out. Please try a shorter video.",
				Err:      err,
			}
		}

		return &SessionError{
			Reason:   FailDownloadFailed,
			UserText: "❌ Download failed. Please try a different URL or quality.",
			Err:      err,
		}
	}

	return nil
}

// record appends a history entry and, on success, bumps the user's lifetime
// counter. History failures never fail a session.
func (o *Orchestrator) record(ctx context.Context, req Request, fileSize int64, success bool) {
	logger := logctx.LoggerFromContext(ctx)

	err := o.videos.RecordVideo(ctx, history.VideoRecord{
		UserID:   req.UserID,
		URL:      req.URL,
		Title:    req.Title,
		Duration: req.Duration,
		Format:   req.Quality,
		FileSize: fileSize,
		Success:  success,
	})
	if err != nil {
		logger.Error("failed to record video history", "err", err)
	}

	if success {
		if err := o.users.IncrementDownloads(ctx, req.UserID); err != nil {
			logger.Error("failed to increment user downloads", "err", err)
		}
	}
}

func (o *Orchestrator) edit(req Request, text string) {
	o.msgr.Edit(req.ChatID, req.MessageID, text)
}

// truncate cuts on rune boundaries so multi-byte titles stay valid UTF-8 in
// the upload caption.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
