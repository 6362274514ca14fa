package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ytget/kwikdl/errs"
	"github.com/ytget/kwikdl/internal/logger"
	"github.com/ytget/kwikdl/types"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 32 << 20 // 32MB

	userAgentValue = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	headerUserAgent               = "User-Agent"
	headerAccept                  = "Accept"
	headerAcceptLanguage          = "Accept-Language"
	headerAcceptEncoding          = "Accept-Encoding"
	headerContentType             = "Content-Type"
	headerContentEncoding         = "Content-Encoding"
	headerUpgradeInsecureRequests = "Upgrade-Insecure-Requests"
	headerSecFetchDest            = "Sec-Fetch-Dest"
	headerSecFetchMode            = "Sec-Fetch-Mode"
	headerSecFetchSite            = "Sec-Fetch-Site"
	headerSecFetchUser            = "Sec-Fetch-User"

	formContentType = "application/x-www-form-urlencoded"
)

// defaultTransport is a tuned HTTP transport reused across clients.
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ResponseHeaderTimeout: 10 * time.Second,
	ForceAttemptHTTP2:     true,
	// Bodies are decompressed by Fetch according to Content-Encoding.
	DisableCompression: true,
	ReadBufferSize:     16 * 1024,
	WriteBufferSize:    16 * 1024,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// browserHeaders is the request header set sent with every fetch.
var browserHeaders = map[string]string{
	headerAccept:                  "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	headerAcceptLanguage:          "en-US,en;q=0.9",
	headerAcceptEncoding:          "gzip, deflate, br",
	headerUpgradeInsecureRequests: "1",
	headerSecFetchDest:            "document",
	headerSecFetchMode:            "navigate",
	headerSecFetchSite:            "none",
	headerSecFetchUser:            "?1",
}

// Fetcher performs one HTTP exchange and returns its snapshot. Implementations
// never follow redirects and never retry.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts types.FetchOptions) (*types.FetchResult, error)
}

// NetworkError reports a transport-level failure. It matches errs.ErrNetwork
// and the underlying cause with errors.Is.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%v: %s: %v", errs.ErrNetwork, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() []error {
	return []error{errs.ErrNetwork, e.Err}
}

// ExpectOK returns a NetworkError when a page fetch ended with a 4xx/5xx status.
func ExpectOK(r *types.FetchResult) error {
	if r.StatusCode >= http.StatusBadRequest {
		return &NetworkError{URL: r.URL, Err: fmt.Errorf("HTTP status %d", r.StatusCode)}
	}
	return nil
}

// Config holds optional client parameters. Zero values use defaults.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	ProxyURL  string
	// Headers are added to the browser header set; per-call headers still win.
	Headers map[string]string
}

// Client is the direct Fetcher: browser-like headers, body decompression and
// no automatic redirects.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	Headers    map[string]string

	log *logger.ComponentLogger
}

// New creates a new Client with a tuned Transport and default timeout.
func New() *Client {
	return &Client{
		HTTPClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: defaultTransport,
		},
		UserAgent: userAgentValue,
		log:       logger.WithComponent(logger.ComponentClient),
	}
}

// NewWith creates a new client with provided config. Zero values use defaults.
func NewWith(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = userAgentValue
	}

	tr := defaultTransport.Clone()
	if cfg.ProxyURL != "" {
		if proxyFunc, err := proxyFromURLString(cfg.ProxyURL); err == nil {
			tr.Proxy = proxyFunc
		}
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: tr,
		},
		UserAgent: ua,
		Headers:   cfg.Headers,
		log:       logger.WithComponent(logger.ComponentClient),
	}
}

// WithHTTPClient replaces the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.HTTPClient = hc
	}
	return c
}

// WithLogger sets the logger used for request diagnostics.
func (c *Client) WithLogger(l *logger.Logger) *Client {
	if l != nil {
		c.log = l.WithComponent(logger.ComponentClient)
	}
	return c
}

// Fetch performs the request described by opts and returns the response
// snapshot whatever its status. Only transport failures are errors.
func (c *Client) Fetch(ctx context.Context, rawURL string, opts types.FetchOptions) (*types.FetchResult, error) {
	req, err := c.newRequest(ctx, rawURL, opts)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}

	hc := *c.httpClient()
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.log.Debug("request failed", map[string]interface{}{"url": rawURL, "error": err.Error()})
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}

	body := decodeBody(raw, resp.Header.Get(headerContentEncoding), resp.Header.Get(headerContentType))
	c.log.Debug("response", map[string]interface{}{
		"url":      rawURL,
		"method":   req.Method,
		"status":   resp.StatusCode,
		"bytes":    len(raw),
		"encoding": resp.Header.Get(headerContentEncoding),
		"elapsed":  time.Since(start).String(),
	})

	return &types.FetchResult{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		Body:       body,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, rawURL string, opts types.FetchOptions) (*http.Request, error) {
	method := strings.ToUpper(opts.Method)
	var body io.Reader
	if opts.Form != nil {
		if method == "" {
			method = http.MethodPost
		}
		body = strings.NewReader(opts.Form.Encode())
	}
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}

	ua := c.UserAgent
	if ua == "" {
		ua = userAgentValue
	}
	req.Header.Set(headerUserAgent, ua)
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	if opts.Form != nil {
		req.Header.Set(headerContentType, formContentType)
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultTimeout, Transport: defaultTransport}
}

// IsTimeout reports whether err came from a deadline or a transport timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// proxyFromURLString parses a proxy URL and returns a Proxy function.
func proxyFromURLString(raw string) (func(*http.Request) (*url.URL, error), error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return http.ProxyURL(u), nil
}
