package progress

import (
	"context"
	"strings"
	"time"

	"github.com/vidgate/videobot/internal/logctx"
	"github.com/vidgate/videobot/internal/session"
)

// Editor edits a previously sent chat message in place.
type Editor interface {
	Edit(chatID int64, messageID int, text string) error
}

// Reporter polls a session's progress snapshot and renders it into a chat
// message. Polling is frequent but rendering is throttled to respect the
// transport's outbound rate limits.
type Reporter struct {
	editor         Editor
	pollInterval   time.Duration
	renderInterval time.Duration
}

func NewReporter(editor Editor, pollInterval, renderInterval time.Duration) *Reporter {
	return &Reporter{
		editor:         editor,
		pollInterval:   pollInterval,
		renderInterval: renderInterval,
	}
}

// Run reports progress for one session until the download finishes or the
// context is cancelled. It always terminates when its context does, so a
// dying download cannot orphan it.
func (r *Reporter) Run(ctx context.Context, snap *session.Snapshot, chatID int64, messageID int, startedAt time.Time) {
	logger := logctx.LoggerFromContext(ctx)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	var (
		lastRenderAt time.Time
		lastStatus   session.Status
		lastText     string
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		p := snap.Load()
		if p.Status < lastStatus {
			continue
		}

		finished := p.Status == session.StatusFinished
		if !finished && time.Since(lastRenderAt) < r.renderInterval {
			continue
		}

		text := renderProgress(p, time.Since(startedAt))
		if text == "" || text == lastText {
			if finished {
				return
			}
			continue
		}

		if err := r.editor.Edit(chatID, messageID, text); err != nil {
			// The transport rejects edits that leave the message unchanged;
			// that is expected when progress stalls between renders.
			if !isNotModified(err) {
				logger.Warn("failed to render progress", "err", err)
			}
		}

		lastRenderAt = time.Now()
		lastStatus = p.Status
		lastText = text

		if finished {
			return
		}
	}
}

func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
