package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	TelegramToken string  `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	AdminUserIDs  []int64 `envconfig:"ADMIN_USER_IDS"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	DBPath       string `envconfig:"DB_PATH" default:"videobot.db"`
	DownloadsDir string `envconfig:"DOWNLOADS_DIR" default:"downloads"`
	BackupsDir   string `envconfig:"BACKUPS_DIR" default:"backups"`
	KeepBackups  int    `envconfig:"KEEP_BACKUPS" default:"5"`

	MaxConcurrentDownloads int `envconfig:"MAX_CONCURRENT_DOWNLOADS" default:"2"`
	MaxUsersPerDay         int `envconfig:"MAX_USERS_PER_DAY" default:"2"`
	MaxVideosPerUser       int `envconfig:"MAX_VIDEOS_PER_USER" default:"2"`
	MaxTotalDailyDownloads int `envconfig:"MAX_TOTAL_DAILY_DOWNLOADS" default:"3"`

	MaxVideoDuration time.Duration `envconfig:"MAX_VIDEO_DURATION" default:"380s"`
	MaxFileSize      int64         `envconfig:"MAX_FILE_SIZE" default:"52428800"`
	DownloadTimeout  time.Duration `envconfig:"DOWNLOAD_TIMEOUT" default:"15m"`

	ProgressPollInterval   time.Duration `envconfig:"PROGRESS_POLL_INTERVAL" default:"1s"`
	ProgressRenderInterval time.Duration `envconfig:"PROGRESS_RENDER_INTERVAL" default:"3s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
