package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vidgate/videobot/internal/backup"
	"github.com/vidgate/videobot/internal/logctx"
)

// handleAdminCommand routes the privileged commands. Non-admins get the
// generic unknown-command reply so the admin surface stays invisible.
func (b *Bot) handleAdminCommand(ctx context.Context, msg *tgbotapi.Message) {
	if !b.admins[msg.From.ID] {
		b.reply(msg.Chat.ID, "I don't know that command. Use /help to see what I can do.")
		return
	}

	switch msg.Command() {
	case "adminstats":
		b.adminStats(ctx, msg.Chat.ID)
	case "adminusers":
		b.adminUsers(ctx, msg.Chat.ID)
	case "adminvideos":
		b.adminVideos(ctx, msg.Chat.ID)
	case "adminreset":
		b.limits.ForceReset(ctx)
		b.reply(msg.Chat.ID, "🔄 Daily stats have been reset manually!\n\n✅ All daily limits are now available again.")
	case "adminbackup":
		b.adminBackup(ctx, msg.Chat.ID)
	case "admincleanup":
		b.adminCleanup(ctx, msg.Chat.ID)
	case "adminhelp":
		b.reply(msg.Chat.ID, adminHelpText)
	}
}

const adminHelpText = `🔧 ADMIN COMMANDS

📊 Statistics:
• /adminstats - Detailed bot statistics
• /adminusers - List all users
• /adminvideos - Recent video downloads

🛠️ Management:
• /adminreset - Reset daily limits manually
• /adminbackup - Create data backup
• /admincleanup - Clean old temporary files

ℹ️ Info:
• /adminhelp - Show this help message`

func (b *Bot) adminStats(ctx context.Context, chatID int64) {
	logger := logctx.LoggerFromContext(ctx)
	stats := b.limits.Stats(ctx)
	l := b.limits.Limits()

	totalUsers, err := b.users.CountUsers(ctx)
	if err != nil {
		logger.Error("failed to count users", "err", err)
	}

	totalVideos, err := b.videos.CountVideos(ctx)
	if err != nil {
		logger.Error("failed to count videos", "err", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `🔧 ADMIN STATISTICS

📊 Overall Stats:
• Total Users: %d
• Total Videos Downloaded: %d
• Bot Running Since: %s
• All-time Downloads: %d

📅 Today's Stats:
• Active downloads: %d/%d
• Downloads today: %d/%d
• Users today: %d/%d
• Remaining: %d
`,
		totalUsers, totalVideos, stats.BotStartDate, stats.TotalDownloadsAllTime,
		stats.ActiveDownloads, l.MaxConcurrentDownloads,
		stats.DownloadsToday, l.MaxTotalDailyDownloads,
		stats.UsersToday, l.MaxUsersPerDay,
		stats.RemainingDownloads)

	recent, err := b.videos.RecentVideos(ctx, 5)
	if err == nil && len(recent) > 0 {
		sb.WriteString("\n🎥 Last 5 Downloads:\n")
		for i, v := range recent {
			fmt.Fprintf(&sb, "%d. User %d: %s (%s)\n",
				i+1, v.UserID, truncateTitle(v.Title, 30), v.DownloadedAt.Format("2006-01-02"))
		}
	}

	b.reply(chatID, sb.String())
}

func (b *Bot) adminUsers(ctx context.Context, chatID int64) {
	users, err := b.users.ListUsers(ctx, maxListedUsers)
	if err != nil {
		b.reply(chatID, "❌ Failed to read the user list: "+err.Error())
		return
	}

	if len(users) == 0 {
		b.reply(chatID, "👥 No users found in database")
		return
	}

	var sb strings.Builder
	sb.WriteString("👥 USER LIST\n\n")

	for i, u := range users {
		name := u.FirstName
		if u.LastName != "" {
			name += " " + u.LastName
		}

		username := u.Username
		if username == "" {
			username = "No username"
		}

		fmt.Fprintf(&sb, "%d. %s (@%s)\n   ID: %d | Downloads: %d | Last: %s\n\n",
			i+1, name, username, u.UserID, u.TotalDownloads, u.LastSeen.Format("2006-01-02"))

		if sb.Len() > maxMessageLength {
			fmt.Fprintf(&sb, "... and %d more users", len(users)-i-1)
			break
		}
	}

	b.reply(chatID, sb.String())
}

func (b *Bot) adminVideos(ctx context.Context, chatID int64) {
	videos, err := b.videos.RecentVideos(ctx, maxListedVideos)
	if err != nil {
		b.reply(chatID, "❌ Failed to read the video history: "+err.Error())
		return
	}

	if len(videos) == 0 {
		b.reply(chatID, "🎥 No videos found in database")
		return
	}

	var sb strings.Builder
	sb.WriteString("🎥 RECENT DOWNLOADS\n\n")

	for i, v := range videos {
		size := "Unknown"
		if v.FileSize > 0 {
			size = humanize.Bytes(uint64(v.FileSize))
		}

		fmt.Fprintf(&sb, "%d. %s\n   User: %d | %s\n   Format: %s | Size: %s\n\n",
			i+1, truncateTitle(v.Title, 40), v.UserID,
			v.DownloadedAt.Format("2006-01-02 15:04"), v.Format, size)

		if sb.Len() > maxMessageLength {
			fmt.Fprintf(&sb, "... and %d more videos", len(videos)-i-1)
			break
		}
	}

	b.reply(chatID, sb.String())
}

func (b *Bot) adminBackup(ctx context.Context, chatID int64) {
	res, err := backup.Create(ctx, b.cfg.BackupsDir, b.cfg.DBPath, b.limits.Stats(ctx))
	if err != nil {
		b.reply(chatID, "❌ Backup failed: "+err.Error())
		return
	}

	b.reply(chatID, fmt.Sprintf(
		"✅ Backup created successfully!\n\n📁 Backup directory: %s\n📄 Files backed up: %d\n🕐 Backup time: %s",
		res.Dir, len(res.Files), res.CreatedAt.Format("20060102_150405")))
}

func (b *Bot) adminCleanup(ctx context.Context, chatID int64) {
	removed := backup.Cleanup(ctx, b.cfg.DownloadsDir, b.cfg.BackupsDir, b.cfg.KeepBackups)

	b.reply(chatID, fmt.Sprintf(
		"✅ Cleanup completed!\n\n🗑️ Files cleaned: %d\n📁 Temporary files removed\n🔄 Old backups cleaned", removed))
}
