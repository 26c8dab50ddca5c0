package engine

import (
	"context"
	"time"
)

// Metadata is the lightweight probe result for a URL, fetched without
// downloading any media.
type Metadata struct {
	Title    string
	Duration time.Duration
}

// Progress is one update emitted by a running download.
type Progress struct {
	DownloadedBytes int64
	TotalBytes      int64
	SpeedBytesSec   float64
	ETA             time.Duration
}

// Request describes one download.
type Request struct {
	URL string
	// Format is an extractor format selector, see FormatSelector.
	Format string
	// OutputTemplate is the extractor output template, e.g.
	// "downloads/42/title_1712345678.%(ext)s".
	OutputTemplate string
}

// Engine extracts and downloads media. Implementations must honor context
// cancellation and call onProgress from the downloading goroutine only.
type Engine interface {
	Probe(ctx context.Context, url string) (*Metadata, error)
	Download(ctx context.Context, req Request, onProgress func(Progress)) error
}

// FormatSelector maps a user quality choice to an extractor format string.
// Unknown choices fall back to the smallest available stream.
func FormatSelector(quality string) string {
	switch quality {
	case "360p":
		return "worst[height<=360]/worst"
	case "480p":
		return "worst[height<=480]/worst"
	default:
		return "worst"
	}
}
