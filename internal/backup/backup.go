package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vidgate/videobot/internal/limits"
	"github.com/vidgate/videobot/internal/logctx"
)

// Result describes one completed backup.
type Result struct {
	Dir       string
	Files     []string
	CreatedAt time.Time
}

// Create copies the history database into a timestamped directory under
// backupsRoot and writes a JSON snapshot of the quota counters next to it.
func Create(ctx context.Context, backupsRoot, dbPath string, stats limits.Stats) (*Result, error) {
	now := time.Now()
	dir := filepath.Join(backupsRoot, "backup_"+now.Format("20060102_150405"))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	res := &Result{Dir: dir, CreatedAt: now}

	if _, err := os.Stat(dbPath); err == nil {
		dst := filepath.Join(dir, filepath.Base(dbPath))
		if err := copyFile(dbPath, dst); err != nil {
			return nil, fmt.Errorf("copy database: %w", err)
		}
		res.Files = append(res.Files, filepath.Base(dbPath))
	}

	info := map[string]any{
		"backup_time": now.Format(time.RFC3339),
		"files":       res.Files,
		"quota_stats": stats,
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(filepath.Join(dir, "backup_info.json"), data, 0o644); err != nil {
		return nil, fmt.Errorf("write backup info: %w", err)
	}
	res.Files = append(res.Files, "backup_info.json")

	return res, nil
}

// Cleanup removes leftover files in per-user work directories and prunes old
// backups, keeping the newest keepBackups. Individual failures are logged
// and skipped.
func Cleanup(ctx context.Context, downloadsRoot, backupsRoot string, keepBackups int) int {
	logger := logctx.LoggerFromContext(ctx)
	removed := 0

	userDirs, err := os.ReadDir(downloadsRoot)
	if err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to read downloads dir", "err", err)
	}

	for _, userDir := range userDirs {
		if !userDir.IsDir() {
			continue
		}

		dirPath := filepath.Join(downloadsRoot, userDir.Name())
		files, err := os.ReadDir(dirPath)
		if err != nil {
			continue
		}

		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(dirPath, f.Name())); err == nil {
				removed++
			}
		}
	}

	backups, err := os.ReadDir(backupsRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to read backups dir", "err", err)
		}
		return removed
	}

	var names []string
	for _, b := range backups {
		if b.IsDir() && strings.HasPrefix(b.Name(), "backup_") {
			names = append(names, b.Name())
		}
	}

	if len(names) > keepBackups {
		sort.Strings(names)
		for _, old := range names[:len(names)-keepBackups] {
			if err := os.RemoveAll(filepath.Join(backupsRoot, old)); err == nil {
				removed++
			}
		}
	}

	return removed
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	return out.Close()
}
