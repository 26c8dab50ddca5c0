package ytdlp

import (
	"context"
	"fmt"
	"time"

	goytdlp "github.com/lrstanley/go-ytdlp"

	"github.com/vidgate/videobot/internal/engine"
)

const progressInterval = 500 * time.Millisecond

// Engine downloads media through yt-dlp.
type Engine struct{}

func New() *Engine {
	// Downloads yt-dlp if it is not already present on the host.
	goytdlp.MustInstall(context.Background(), nil)

	return &Engine{}
}

func (e *Engine) Probe(ctx context.Context, url string) (*engine.Metadata, error) {
	result, err := goytdlp.New().
		SkipDownload().
		DumpSingleJSON().
		NoPlaylist().
		NoWarnings().
		Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", url, err)
	}

	info, err := result.GetExtractedInfo()
	if err != nil || len(info) == 0 {
		return nil, fmt.Errorf("no metadata extracted for %s: %w", url, err)
	}

	meta := &engine.Metadata{Title: "Unknown"}
	if info[0].Title != nil {
		meta.Title = *info[0].Title
	}
	if info[0].Duration != nil {
		meta.Duration = time.Duration(*info[0].Duration * float64(time.Second))
	}

	return meta, nil
}

func (e *Engine) Download(ctx context.Context, req engine.Request, onProgress func(engine.Progress)) error {
	dl := goytdlp.New().
		Format(req.Format).
		Output(req.OutputTemplate).
		ForceOverwrites().
		NoPlaylist().
		NoWarnings().
		Retries("1")

	dl.ProgressFunc(progressInterval, func(update goytdlp.ProgressUpdate) {
		p := engine.Progress{
			DownloadedBytes: int64(update.DownloadedBytes),
			TotalBytes:      int64(update.TotalBytes),
		}

		if !update.Started.IsZero() {
			if elapsed := time.Since(update.Started); elapsed > 0 {
				p.SpeedBytesSec = float64(update.DownloadedBytes) / elapsed.Seconds()
			}
		}
		if eta := update.ETA(); eta > 0 {
			p.ETA = eta
		}

		onProgress(p)
	})

	if _, err := dl.Run(ctx, req.URL); err != nil {
		return fmt.Errorf("download %s: %w", req.URL, err)
	}

	return nil
}
