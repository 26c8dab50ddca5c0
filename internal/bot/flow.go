package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vidgate/videobot/internal/download"
	"github.com/vidgate/videobot/internal/logctx"
	"github.com/vidgate/videobot/internal/progress"
)

// handleURL probes the URL, enforces the duration cap, and offers the
// quality keyboard. No quota is consumed here; admission happens when the
// user picks a quality.
func (b *Bot) handleURL(ctx context.Context, msg *tgbotapi.Message) {
	logger := logctx.LoggerFromContext(ctx)
	userID := msg.From.ID
	url := strings.TrimSpace(msg.Text)

	if dec := b.limits.CanDownload(ctx, userID); !dec.Allowed {
		b.reply(msg.Chat.ID, dec.Message(b.limits.Limits()))
		return
	}

	b.reply(msg.Chat.ID, "🔍 Checking video... Please wait.")

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeoutSeconds*time.Second)
	defer cancel()

	meta, err := b.engine.Probe(probeCtx, url)
	if err != nil {
		serr := &download.SessionError{
			Reason:   download.FailMetadataFetchFailed,
			UserText: "❌ Unable to process this video. Please try a different URL.",
			Err:      err,
		}
		logger.Warn("metadata probe failed", "user_id", userID, "reason", string(serr.Reason), "err", serr.Err)
		b.reply(msg.Chat.ID, serr.UserText)
		return
	}

	// Reject over-long videos before any quota or bandwidth is spent.
	if meta.Duration > b.cfg.MaxVideoDuration {
		b.reply(msg.Chat.ID, fmt.Sprintf("❌ Video too long. Maximum %s allowed.", b.cfg.MaxVideoDuration))
		return
	}

	b.mu.Lock()
	b.pending[userID] = &pendingRequest{
		url:       url,
		title:     meta.Title,
		duration:  meta.Duration,
		createdAt: time.Now(),
	}
	b.mu.Unlock()

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎥 480p quality", callbackDownloadPrefix+quality480),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎥 360p quality", callbackDownloadPrefix+quality360),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎥 Lowest quality (Fastest)", callbackDownloadPrefix+qualityWorst),
		),
	)

	stats := b.limits.Stats(ctx)
	remaining := b.limits.Limits().MaxVideosPerUser - b.limits.UserDownloadsToday(ctx, userID)

	found := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf(
		"🎵 Video Found:\n📺 %s\n⏳ Duration: %s\n\n📊 Remaining today: %d downloads\n👤 Your remaining: %d videos",
		truncateTitle(meta.Title, 50), progress.FormatClock(meta.Duration), stats.RemainingDownloads, remaining))
	found.ReplyMarkup = keyboard

	b.api.Send(found)
}

// handleCallback dispatches a quality choice into a download session running
// on its own goroutine.
func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	// Answer first to clear the button's loading state.
	b.api.Send(tgbotapi.NewCallback(callback.ID, ""))

	if !strings.HasPrefix(callback.Data, callbackDownloadPrefix) || callback.Message == nil {
		return
	}

	quality := strings.TrimPrefix(callback.Data, callbackDownloadPrefix)
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	b.mu.Lock()
	req, ok := b.pending[userID]
	delete(b.pending, userID)
	b.mu.Unlock()

	if !ok {
		b.editMessage(chatID, messageID, "❌ No video URL found. Please send a URL first.")
		return
	}

	b.editMessage(chatID, messageID, "⏳ Starting download... This may take a few minutes.")

	// The session runs on the long-lived bot context, not the update's: the
	// download outlives this callback.
	go func() {
		b.orchestrator.Run(b.runCtx, download.Request{
			UserID:    userID,
			ChatID:    chatID,
			MessageID: messageID,
			URL:       req.url,
			Quality:   quality,
			Title:     req.title,
			Duration:  req.duration,
		})
	}()
}

func (b *Bot) editMessage(chatID int64, messageID int, text string) {
	b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
}

// truncateTitle cuts on rune boundaries so multi-byte titles stay valid
// UTF-8; the transport rejects text that is not.
func truncateTitle(title string, n int) string {
	runes := []rune(title)
	if len(runes) <= n {
		return title
	}
	return string(runes[:n]) + "..."
}
