package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	"github.com/vidgate/videobot/internal/bot"
	"github.com/vidgate/videobot/internal/config"
	"github.com/vidgate/videobot/internal/download"
	ytdlpengine "github.com/vidgate/videobot/internal/engine/ytdlp"
	"github.com/vidgate/videobot/internal/history/sqlite"
	"github.com/vidgate/videobot/internal/limits"
	"github.com/vidgate/videobot/internal/logctx"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("video downloader bot starting...", "log_level", cfg.LogLevel)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Database
	database, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	users := sqlite.NewUserRepository(database)
	videos := sqlite.NewVideoRepository(database)

	// =========================================================================
	// Start Quota Store
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	store := limits.NewRedisStore(redisClient)

	// Active slots are intentionally volatile: a restart frees every slot.
	controller := limits.NewController(ctx, limits.Thresholds{
		MaxConcurrentDownloads: cfg.MaxConcurrentDownloads,
		MaxUsersPerDay:         cfg.MaxUsersPerDay,
		MaxVideosPerUser:       cfg.MaxVideosPerUser,
		MaxTotalDailyDownloads: cfg.MaxTotalDailyDownloads,
	}, store)

	// =========================================================================
	// Start Download Engine
	if err := os.MkdirAll(cfg.DownloadsDir, 0o755); err != nil {
		return err
	}

	eng := ytdlpengine.New()

	// =========================================================================
	// Start Bot
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return err
	}
	logger.Info("authorized on telegram", "account", api.Self.UserName)

	orchestrator := download.NewOrchestrator(controller, eng, videos, users, bot.NewMessenger(api), download.Config{
		DownloadsDir:           cfg.DownloadsDir,
		MaxFileSize:            cfg.MaxFileSize,
		Timeout:                cfg.DownloadTimeout,
		ProgressPollInterval:   cfg.ProgressPollInterval,
		ProgressRenderInterval: cfg.ProgressRenderInterval,
	})

	b := bot.New(bot.Config{
		API:          api,
		Admins:       cfg.AdminUserIDs,
		Limits:       controller,
		Orchestrator: orchestrator,
		Engine:       eng,
		Users:        users,
		Videos:       videos,
		App:          cfg,
	})

	logger.Info("waiting for downloads...",
		"max_concurrent", cfg.MaxConcurrentDownloads,
		"max_daily_total", cfg.MaxTotalDailyDownloads,
		"max_per_user", cfg.MaxVideosPerUser,
		"downloads_dir", cfg.DownloadsDir,
	)

	b.Start(ctx)

	return nil
}
