package kwikdl

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ytget/kwikdl/downloader"
	"github.com/ytget/kwikdl/errs"
	"github.com/ytget/kwikdl/internal/mimeext"
	"github.com/ytget/kwikdl/internal/sanitize"
	"github.com/ytget/kwikdl/types"
)

// DownloadOptions contains configuration for a single download invocation.
type DownloadOptions struct {
	// OutputPath is a file or directory. Empty derives a file name in the
	// working directory from the link and the served MIME type.
	OutputPath   string
	HTTPClient   *http.Client
	ProgressFunc func(Progress)
	RateLimitBps int64
}

// Progress describes current progress of an ongoing download.
type Progress struct {
	TotalSize      int64
	DownloadedSize int64
	Percent        float64
}

// Download resolves rawURL and saves the media behind the final link. It
// returns the resolution result and the written path. A partial result is
// an error because the intermediate link is a page, not media.
func (r *Resolver) Download(ctx context.Context, rawURL string, opts DownloadOptions) (*types.Result, string, error) {
	res, err := r.Resolve(ctx, rawURL)
	if err != nil {
		return res, "", err
	}
	if res.Partial {
		return res, "", fmt.Errorf("%w: only the intermediate link was resolved: %s", errs.ErrSubmission, res.Warning)
	}
	path, err := DownloadLink(ctx, res.FinalLink, res.IntermediateLink, opts)
	return res, path, err
}

// DownloadLink saves link, sending referer with every request.
func DownloadLink(ctx context.Context, link, referer string, opts DownloadOptions) (string, error) {
	var progress func(downloader.Progress)
	if opts.ProgressFunc != nil {
		progress = func(p downloader.Progress) {
			opts.ProgressFunc(Progress{TotalSize: p.TotalSize, DownloadedSize: p.DownloadedSize, Percent: p.Percent})
		}
	}
	dl := downloader.New(opts.HTTPClient, progress, opts.RateLimitBps).WithReferer(referer)

	outputPath := opts.OutputPath
	if outputPath == "" || isDir(outputPath) {
		probe, _ := dl.Probe(ctx, link)
		name := sanitize.FilenameFromURL(link, mimeext.ExtFromMime(probe.ContentType))
		if outputPath != "" {
			name = filepath.Join(outputPath, name)
		}
		outputPath = name
	}

	if err := dl.Download(ctx, link, outputPath); err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	return outputPath, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
