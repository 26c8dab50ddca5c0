package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	appconfig "github.com/vidgate/videobot/internal/config"
	"github.com/vidgate/videobot/internal/download"
	"github.com/vidgate/videobot/internal/engine"
	"github.com/vidgate/videobot/internal/history"
	"github.com/vidgate/videobot/internal/limits"
	"github.com/vidgate/videobot/internal/logctx"
)

// pendingRequest is a probed URL waiting for the user's quality choice.
type pendingRequest struct {
	url       string
	title     string
	duration  time.Duration
	createdAt time.Time
}

// TelegramClient is the slice of the Telegram API the update loop depends
// on. *tgbotapi.BotAPI satisfies it.
type TelegramClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	api          TelegramClient
	admins       map[int64]bool
	limits       *limits.Controller
	orchestrator *download.Orchestrator
	engine       engine.Engine
	users        history.UserRepository
	videos       history.VideoRepository
	cfg          *appconfig.Config

	mu      sync.Mutex
	pending map[int64]*pendingRequest

	runCtx context.Context
}

type Config struct {
	API          TelegramClient
	Admins       []int64
	Limits       *limits.Controller
	Orchestrator *download.Orchestrator
	Engine       engine.Engine
	Users        history.UserRepository
	Videos       history.VideoRepository
	App          *appconfig.Config
}

func New(cfg Config) *Bot {
	admins := make(map[int64]bool)
	for _, id := range cfg.Admins {
		admins[id] = true
	}

	return &Bot{
		api:          cfg.API,
		admins:       admins,
		limits:       cfg.Limits,
		orchestrator: cfg.Orchestrator,
		engine:       cfg.Engine,
		users:        cfg.Users,
		videos:       cfg.Videos,
		cfg:          cfg.App,
		pending:      make(map[int64]*pendingRequest),
	}
}

// Start consumes updates until the context is cancelled. Every update is
// dispatched to its own goroutine: a user waiting on a metadata probe or a
// download must never delay another user's messages or callbacks. The shared
// state behind each handler (pending requests, the admission controller) is
// mutex-guarded.
func (b *Bot) Start(ctx context.Context) {
	b.runCtx = ctx

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		go b.handleUpdate(ctx, update)
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	b.touchUser(ctx, msg.From)

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if msg.Text != "" {
		b.handleURL(ctx, msg)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.reply(msg.Chat.ID, b.welcomeText())
	case "help":
		b.reply(msg.Chat.ID, b.helpText())
	case "stats":
		b.reply(msg.Chat.ID, b.statsText(ctx, msg.From.ID))
	case "adminstats", "adminusers", "adminvideos", "adminreset", "adminbackup", "admincleanup", "adminhelp":
		b.handleAdminCommand(ctx, msg)
	default:
		b.reply(msg.Chat.ID, "I don't know that command. Use /help to see what I can do.")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.api.Send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) touchUser(ctx context.Context, from *tgbotapi.User) {
	firstSeen, err := b.users.TouchUser(ctx, history.User{
		UserID:    from.ID,
		FirstName: from.FirstName,
		LastName:  from.LastName,
		Username:  from.UserName,
	})
	if err != nil {
		logctx.LoggerFromContext(ctx).Error("failed to touch user", "user_id", from.ID, "err", err)
		return
	}

	if firstSeen {
		b.limits.RegisterUser(ctx)
	}
}

func (b *Bot) welcomeText() string {
	l := b.limits.Limits()
	return fmt.Sprintf(`👋 Welcome to the video downloader bot!

⚠️ Daily Limits:
• Maximum %d videos per user per day

📱 How to use:
• Send a video URL
• Choose video quality from the options
• Wait for download and upload

🔄 Limits reset daily at midnight UTC

Use /help for more information.`, l.MaxVideosPerUser)
}

func (b *Bot) helpText() string {
	return fmt.Sprintf(`🎬 Video Downloader Bot Help

📱 How to use:
1. Send me a video URL
2. Choose video quality from the options
3. Wait for download and upload

📊 Commands:
• /start - Start the bot
• /stats - View your usage statistics
• /help - Show this help message

⚠️ Limits:
• Max %s video duration
• Max %d MB file size

🔄 Limits reset daily at midnight UTC

💡 Tips:
• Choose 360p for faster downloads
• Shorter videos work better`, b.cfg.MaxVideoDuration, b.cfg.MaxFileSize/(1024*1024))
}

func (b *Bot) statsText(ctx context.Context, userID int64) string {
	l := b.limits.Limits()
	dec := b.limits.CanDownload(ctx, userID)

	canText := "✅ Yes"
	if !dec.Allowed {
		canText = "❌ No"
	}

	return fmt.Sprintf(`👤 Your Status:
• Your downloads today: %d/%d
• Can you download: %s

📋 Daily Limits:
• Max videos per user: %d
• Max total downloads: %d

🕐 Resets: Daily at midnight UTC`,
		b.limits.UserDownloadsToday(ctx, userID), l.MaxVideosPerUser,
		canText,
		l.MaxVideosPerUser, l.MaxTotalDailyDownloads)
}
