package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vidgate/videobot/internal/session"
)

const progressBarLength = 10

func createProgressBar(downloaded, total int64) string {
	if total <= 0 {
		return ""
	}

	ratio := float64(downloaded) / float64(total)
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	filled := int(ratio * float64(progressBarLength))
	empty := progressBarLength - filled

	return fmt.Sprintf("[%s%s] %.1f%%",
		strings.Repeat("█", filled),
		strings.Repeat("-", empty),
		ratio*100)
}

// createIndeterminateBar animates a block across the bar by wall-clock time.
// It signals activity, not actual progress, for downloads with unknown size.
func createIndeterminateBar(elapsed time.Duration) string {
	pos := int(elapsed.Seconds()) % progressBarLength

	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < progressBarLength; i++ {
		if i == pos {
			b.WriteString("█")
		} else {
			b.WriteString("-")
		}
	}
	b.WriteString("]")

	return b.String()
}

// FormatClock renders a video duration as m:ss for chat messages.
func FormatClock(d time.Duration) string {
	if d <= 0 {
		return "Unknown"
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func formatDuration(duration time.Duration) string {
	if duration.Hours() >= 1 {
		return fmt.Sprintf("%.1f hours", duration.Hours())
	}
	if duration.Minutes() >= 1 {
		return fmt.Sprintf("%.1f minutes", duration.Minutes())
	}
	return fmt.Sprintf("%d seconds", int(duration.Seconds()))
}

func renderProgress(p session.Progress, elapsed time.Duration) string {
	switch p.Status {
	case session.StatusPreparing:
		return "⚙️ Setting up your download... Please wait."

	case session.StatusDownloading:
		if p.TotalBytes > 0 {
			text := fmt.Sprintf("📥 Downloading...\n%s\n💾 %s of %s",
				createProgressBar(p.DownloadedBytes, p.TotalBytes),
				humanize.Bytes(uint64(p.DownloadedBytes)),
				humanize.Bytes(uint64(p.TotalBytes)))
			if p.SpeedBytesSec > 0 {
				text += fmt.Sprintf("\n🚀 %s/s", humanize.Bytes(uint64(p.SpeedBytesSec)))
			}
			if p.ETA > 0 {
				text += fmt.Sprintf("\n⏱️ ETA: %s", formatDuration(p.ETA))
			}
			return text
		}

		text := fmt.Sprintf("📥 Downloading...\n%s", createIndeterminateBar(elapsed))
		if p.DownloadedBytes > 0 {
			text += fmt.Sprintf("\n💾 %s so far", humanize.Bytes(uint64(p.DownloadedBytes)))
		}
		return text

	case session.StatusFinished:
		return fmt.Sprintf("📥 Download finished!\n[%s] 100.0%%\n⏱️ Took %s",
			strings.Repeat("█", progressBarLength),
			formatDuration(elapsed))

	default:
		return ""
	}
}
