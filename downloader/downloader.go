package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ytget/kwikdl/internal/logger"
)

const (
	defaultChunkSizeBytes         = 1 << 20 // 1MB
	defaultMaxRetries             = 3       // chunk retries
	temporaryFileSuffix           = ".tmp"  // suffix for temp download
	initialBackoffDuration        = 200 * time.Millisecond
	maxBackoffDuration            = 3 * time.Second
	copyBufferSizeBytes           = 32 * 1024 // 32KB
	headerRange                   = "Range"
	headerContentRange            = "Content-Range"
	headerContentLength           = "Content-Length"
	headerContentType             = "Content-Type"
	headerUserAgent               = "User-Agent"
	headerAccept                  = "Accept"
	headerAcceptLanguage          = "Accept-Language"
	headerAcceptEncoding          = "Accept-Encoding"
	headerReferer                 = "Referer"
	headerConnection              = "Connection"
	headerCacheControl            = "Cache-Control"
	successMinHTTPStatusCode      = 200
	successMaxHTTPStatusExclusive = 400

	userAgentValue = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

var errUnknownSize = errors.New("cannot determine total size")

// Progress holds information about download progress.
type Progress struct {
	TotalSize      int64
	DownloadedSize int64
	Percent        float64
}

// Probe is what a size probe learned about the remote file.
type Probe struct {
	TotalSize   int64
	ContentType string
}

// Downloader is responsible for downloading media files with chunked HTTP
// requests, simple retry/backoff, and optional rate limiting.
type Downloader struct {
	Client       *http.Client
	ProgressFunc func(Progress)
	// Referer is sent with every request when set. File hosts reached through
	// a resolved link usually expect the page that produced it.
	Referer string

	chunkSize  int64
	maxRetries int
	limiter    *rate.Limiter
	log        *logger.ComponentLogger
}

// New creates a new downloader instance with sane defaults.
// If client is nil, a default http.Client is used. rateLimitBps=0 disables limiting.
func New(client *http.Client, progressFunc func(Progress), rateLimitBps int64) *Downloader {
	if client == nil {
		client = &http.Client{}
	}
	return &Downloader{
		Client:       client,
		ProgressFunc: progressFunc,
		chunkSize:    defaultChunkSizeBytes,
		maxRetries:   defaultMaxRetries,
		limiter:      newLimiter(rateLimitBps),
		log:          logger.WithComponent(logger.ComponentDownloader),
	}
}

// WithReferer sets the Referer header sent with every request.
func (d *Downloader) WithReferer(referer string) *Downloader {
	d.Referer = strings.TrimSpace(referer)
	return d
}

// WithLogger sets the logger used for transfer diagnostics.
func (d *Downloader) WithLogger(l *logger.Logger) *Downloader {
	if l != nil {
		d.log = l.WithComponent(logger.ComponentDownloader)
	}
	return d
}

// newLimiter returns nil for a non-positive rate. The burst covers one copy
// buffer so a single read never exceeds it.
func newLimiter(bytesPerSecond int64) *rate.Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	burst := int(bytesPerSecond)
	if burst < copyBufferSizeBytes {
		burst = copyBufferSizeBytes
	}
	return rate.NewLimiter(rate.Limit(bytesPerSecond), burst)
}

func (d *Downloader) logger() *logger.ComponentLogger {
	if d.log == nil {
		d.log = logger.WithComponent(logger.ComponentDownloader)
	}
	return d.log
}

func (d *Downloader) newRequest(ctx context.Context, method, urlStr string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerUserAgent, userAgentValue)
	req.Header.Set(headerAccept, "*/*")
	req.Header.Set(headerAcceptLanguage, "en-US,en;q=0.9")
	req.Header.Set(headerAcceptEncoding, "identity")
	req.Header.Set(headerConnection, "keep-alive")
	req.Header.Set(headerCacheControl, "no-cache")
	if d.Referer != "" {
		req.Header.Set(headerReferer, d.Referer)
	}
	return req, nil
}

// sizeFromHeaders reads the total size from Content-Range, then Content-Length.
func sizeFromHeaders(h http.Header) (int64, bool) {
	if cr := h.Get(headerContentRange); cr != "" {
		parts := strings.Split(cr, "/")
		if len(parts) == 2 {
			if v, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
				return v, true
			}
		}
	}
	if cl := h.Get(headerContentLength); cl != "" {
		if v, err := strconv.ParseInt(cl, 10, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// Probe tries HEAD first, then GET range 0-1, to learn the total size and
// content type. The content type is returned even when the size is unknown.
func (d *Downloader) Probe(ctx context.Context, urlStr string) (Probe, error) {
	var p Probe
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := d.newRequest(ctx, method, urlStr)
		if err != nil {
			return p, err
		}
		req.Header.Set(headerRange, "bytes=0-1")

		resp, err := d.Client.Do(req)
		if err != nil {
			if method == http.MethodGet {
				return p, err
			}
			continue
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()

		d.logger().Debug("probe response", map[string]interface{}{
			"method": method,
			"status": resp.StatusCode,
		})
		if resp.StatusCode >= successMaxHTTPStatusExclusive {
			continue
		}
		if ct := resp.Header.Get(headerContentType); ct != "" && p.ContentType == "" {
			p.ContentType = ct
		}
		if size, ok := sizeFromHeaders(resp.Header); ok {
			p.TotalSize = size
			return p, nil
		}
	}
	return p, errUnknownSize
}

// detectTotalSize tries HEAD first, then GET range 0-1 to infer total size.
func (d *Downloader) detectTotalSize(ctx context.Context, urlStr string) (int64, error) {
	p, err := d.Probe(ctx, urlStr)
	return p.TotalSize, err
}

// waitForRate blocks until n bytes fit the configured rate.
func (d *Downloader) waitForRate(ctx context.Context, n int) error {
	if d.limiter == nil || n <= 0 {
		return nil
	}
	return d.limiter.WaitN(ctx, n)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// fetchRange requests bytes start..end with retry and backoff.
func (d *Downloader) fetchRange(ctx context.Context, urlStr string, start, end int64) (*http.Response, error) {
	var lastErr error
	backoff := initialBackoffDuration
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		req, err := d.newRequest(ctx, http.MethodGet, urlStr)
		if err != nil {
			return nil, err
		}
		rangeVal := fmt.Sprintf("bytes=%d-%d", start, end)
		req.Header.Set(headerRange, rangeVal)

		resp, err := d.Client.Do(req)
		if err == nil && resp.StatusCode >= successMinHTTPStatusCode && resp.StatusCode < successMaxHTTPStatusExclusive {
			return resp, nil
		}
		if err == nil {
			if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
				return resp, nil
			}
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
			err = fmt.Errorf("HTTP status %d", resp.StatusCode)
		}
		lastErr = err
		d.logger().Warn("range request failed", map[string]interface{}{
			"range":   rangeVal,
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
		if attempt == d.maxRetries-1 {
			break
		}
		if serr := sleepContext(ctx, backoff); serr != nil {
			return nil, serr
		}
		backoff *= 2
		if backoff > maxBackoffDuration {
			backoff = maxBackoffDuration
		}
	}
	return nil, lastErr
}

// Download downloads a file by URL and saves it to outputPath. It supports
// resuming from an existing temporary file and reports progress periodically.
func (d *Downloader) Download(ctx context.Context, urlStr string, outputPath string) error {
	if d.maxRetries <= 0 {
		d.maxRetries = defaultMaxRetries
	}
	if d.chunkSize <= 0 {
		d.chunkSize = defaultChunkSizeBytes
	}
	log := d.logger()

	tmpPath := outputPath + temporaryFileSuffix
	var outFile *os.File
	var err error
	if _, statErr := os.Stat(tmpPath); statErr == nil {
		outFile, err = os.OpenFile(tmpPath, os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open tmp for append: %w", err)
		}
	} else {
		outFile, err = os.Create(tmpPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
	}
	defer func() { _ = outFile.Close() }()

	currentInfo, err := outFile.Stat()
	if err != nil {
		return fmt.Errorf("stat tmp: %w", err)
	}
	downloaded := currentInfo.Size()

	totalSize, err := d.detectTotalSize(ctx, urlStr)
	if err != nil {
		log.Warn("total size unknown, downloading in open-ended chunks", map[string]interface{}{"error": err.Error()})
		totalSize = 0
	}
	log.Info("download started", map[string]interface{}{
		"output":     outputPath,
		"total":      totalSize,
		"resumed_at": downloaded,
	})

	buf := make([]byte, copyBufferSizeBytes)
	for totalSize == 0 || downloaded < totalSize {
		start := downloaded
		end := start + d.chunkSize - 1
		if totalSize > 0 && end >= totalSize {
			end = totalSize - 1
		}

		resp, err := d.fetchRange(ctx, urlStr, start, end)
		if err != nil {
			return fmt.Errorf("download chunk failed: %w", err)
		}
		if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
			_ = resp.Body.Close()
			break
		}

		// A 200 carries the whole file: the server ignored Range.
		whole := resp.StatusCode == http.StatusOK
		if whole && downloaded > 0 {
			if err := outFile.Truncate(0); err != nil {
				_ = resp.Body.Close()
				return fmt.Errorf("truncate tmp: %w", err)
			}
			downloaded = 0
		}

		chunkRead := int64(0)
		for {
			n, rerr := resp.Body.Read(buf)
			if n > 0 {
				if err := d.waitForRate(ctx, n); err != nil {
					_ = resp.Body.Close()
					return fmt.Errorf("rate limit: %w", err)
				}
				if _, werr := outFile.Write(buf[:n]); werr != nil {
					_ = resp.Body.Close()
					return fmt.Errorf("write chunk: %w", werr)
				}
				downloaded += int64(n)
				chunkRead += int64(n)
				if d.ProgressFunc != nil {
					p := Progress{TotalSize: totalSize, DownloadedSize: downloaded}
					if totalSize > 0 {
						p.Percent = float64(downloaded) / float64(totalSize) * 100
					}
					d.ProgressFunc(p)
				}
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				_ = resp.Body.Close()
				return fmt.Errorf("read response body: %w", rerr)
			}
		}
		_ = resp.Body.Close()

		if whole || chunkRead == 0 {
			break
		}
		// Without a known size, a short chunk is the last one.
		if totalSize == 0 && chunkRead < end-start+1 {
			break
		}
	}

	if fi, err := os.Stat(tmpPath); err == nil && fi.Size() == 0 {
		_ = outFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("empty download: 0 bytes written")
	}
	if err := outFile.Close(); err != nil {
		return fmt.Errorf("close tmp: %w", err)
	}

	log.Info("download finished", map[string]interface{}{"output": outputPath, "bytes": downloaded})
	return os.Rename(tmpPath, outputPath)
}
