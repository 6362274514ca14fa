package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ytget/kwikdl"
	"github.com/ytget/kwikdl/internal/logger"
	"github.com/ytget/kwikdl/internal/metrics"
	"github.com/ytget/kwikdl/internal/sanitize"
	"github.com/ytget/kwikdl/internal/server"
	"github.com/ytget/kwikdl/kwik/cipher"
	"github.com/ytget/kwikdl/pkg/client"
	"github.com/ytget/kwikdl/types"
)

const defaultExportName = "links.txt"

func main() {
	var (
		flagConcurrency int
		flagExport      string
		flagJSON        bool
		flagDownload    bool
		flagOutput      string
		flagNoProgress  bool
		flagRelay       string
		flagEngine      string
		flagServe       bool
		flagAddr        string
		flagRPS         float64
		flagTimeout     time.Duration
		flagUA          string
		flagProxy       string
		flagRateLimit   string
	)

	flag.IntVar(&flagConcurrency, "concurrency", 1, "Parallelism when several links are given")
	flag.StringVar(&flagExport, "export", "", "Write resolved links to this file, one per line (e.g. "+defaultExportName+")")
	flag.BoolVar(&flagJSON, "json", false, "Print results as JSON")
	flag.BoolVar(&flagDownload, "download", false, "Download the media behind each final link")
	flag.StringVar(&flagOutput, "output", "", "Output path for -download (file or directory). Empty derives from link + MIME")
	flag.BoolVar(&flagNoProgress, "no-progress", false, "Disable progress output")
	flag.StringVar(&flagRelay, "relay", "", "Fetch pages through a relay endpoint (e.g. http://host:5000/api/fetch)")
	flag.StringVar(&flagEngine, "js-engine", cipher.EngineGoja, "Script engine for packed pages: goja, otto or none")
	flag.BoolVar(&flagServe, "serve", false, "Run the HTTP API instead of resolving arguments")
	flag.StringVar(&flagAddr, "addr", server.AddrFromEnv(), "Listen address for -serve")
	flag.Float64Var(&flagRPS, "rps", server.DefaultConfig().RequestsPerSecond, "Per-client API requests per second for -serve (0 disables)")
	flag.DurationVar(&flagTimeout, "http-timeout", 30*time.Second, "HTTP timeout (e.g., 30s, 1m)")
	flag.StringVar(&flagUA, "ua", "", "Override User-Agent header")
	flag.StringVar(&flagProxy, "proxy", "", "Proxy URL (http/https/socks)")
	flag.StringVar(&flagRateLimit, "rate-limit", "", "Download rate limit (e.g., 2MiB/s, 500KiB/s)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <kwik_url>...\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s -serve [-addr :5000]\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}

	flag.Parse()
	args := flag.Args()
	if !flagServe && len(args) < 1 {
		flag.Usage()
		os.Exit(2)
	}
	if flagExport != "" && !sanitize.IsValidExportName(flagExport) {
		fmt.Fprintf(os.Stderr, "Invalid export file name %q: use a bare name such as %s\n", flagExport, defaultExportName)
		os.Exit(2)
	}

	log, err := logger.CreateLoggerFromConfig(logger.EnvironmentConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid logging configuration: %v\n", err)
		os.Exit(2)
	}
	logger.SetGlobalLogger(log)

	engine, err := cipher.NewScriptEngine(flagEngine, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid script engine: %v\n", err)
		os.Exit(2)
	}

	c := client.NewWith(client.Config{Timeout: flagTimeout, UserAgent: flagUA, ProxyURL: flagProxy}).WithLogger(log)
	var fetcher client.Fetcher = c
	if flagRelay != "" {
		fetcher = client.NewRelay(flagRelay, c.HTTPClient)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagServe {
		m := metrics.New()
		resolver := kwikdl.New().WithFetcher(fetcher).WithScriptEngine(engine).WithLogger(log).WithMetrics(m)
		cfg := server.DefaultConfig()
		cfg.Addr = flagAddr
		cfg.RequestsPerSecond = flagRPS
		if err := server.New(cfg, resolver, fetcher, m).WithLogger(log).ListenAndServe(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	resolver := kwikdl.New().WithFetcher(fetcher).WithScriptEngine(engine).WithLogger(log)
	results := resolver.ResolveAll(ctx, trimAll(args), flagConcurrency)

	failed := false
	for i, res := range results {
		if !res.Success {
			failed = true
		}
		if !flagJSON {
			printResult(args[i], res)
		}
	}
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if flagExport != "" {
		n, err := writeExport(flagExport, results)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Exported %d link(s) to %s\n", n, flagExport)
	}

	if flagDownload {
		opts := kwikdl.DownloadOptions{OutputPath: flagOutput, HTTPClient: c.HTTPClient, RateLimitBps: parseRate(flagRateLimit)}
		if !flagNoProgress && len(results) == 1 {
			opts.ProgressFunc = func(p kwikdl.Progress) {
				if p.TotalSize > 0 {
					_, _ = fmt.Fprintf(os.Stderr, "Downloaded %.1f%%\r", p.Percent)
				}
			}
		}
		for _, res := range results {
			if !res.Success {
				continue
			}
			if res.Partial {
				fmt.Fprintf(os.Stderr, "Skipping %s: only the intermediate link was resolved\n", res.IntermediateLink)
				failed = true
				continue
			}
			path, err := kwikdl.DownloadLink(ctx, res.FinalLink, res.IntermediateLink, opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error downloading %s: %v\n", res.FinalLink, err)
				failed = true
				continue
			}
			fmt.Fprintf(os.Stderr, "\nSaved: %s\n", path)
		}
	}

	if failed {
		os.Exit(1)
	}
}

func printResult(input string, res *types.Result) {
	switch {
	case !res.Success:
		fmt.Fprintf(os.Stderr, "%s: %s\n", input, res.Error)
	case res.Partial:
		_, _ = fmt.Fprintln(os.Stdout, res.FinalLink)
		fmt.Fprintf(os.Stderr, "%s: %s\n", input, res.Message)
	default:
		_, _ = fmt.Fprintln(os.Stdout, res.FinalLink)
	}
}

// writeExport writes the final link of every successful result and returns
// how many were written.
func writeExport(path string, results []*types.Result) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriter(f)
	n := 0
	for _, res := range results {
		if res == nil || !res.Success || res.FinalLink == "" {
			continue
		}
		if _, err := fmt.Fprintln(w, res.FinalLink); err != nil {
			_ = f.Close()
			return n, err
		}
		n++
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return n, err
	}
	return n, f.Close()
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

// parseRate parses strings like "2MiB/s", "500KiB/s" into bytes per second.
func parseRate(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0
	}
	mul := int64(1)
	s = strings.TrimSuffix(s, "/S")
	s = strings.TrimSpace(s)
	sfx := ""
	for _, suf := range []string{"KIB", "MIB", "GIB", "KB", "MB", "GB"} {
		if strings.HasSuffix(s, suf) {
			sfx = suf
			s = strings.TrimSuffix(s, suf)
			break
		}
	}
	s = strings.TrimSpace(s)
	var val float64
	_, err := fmt.Sscanf(s, "%f", &val)
	if err != nil || val <= 0 {
		return 0
	}
	switch sfx {
	case "KIB":
		mul = 1024
	case "MIB":
		mul = 1024 * 1024
	case "GIB":
		mul = 1024 * 1024 * 1024
	case "KB":
		mul = 1000
	case "MB":
		mul = 1000 * 1000
	case "GB":
		mul = 1000 * 1000 * 1000
	}
	return int64(val * float64(mul))
}
