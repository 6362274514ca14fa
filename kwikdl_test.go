package kwikdl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ytget/kwikdl/errs"
	"github.com/ytget/kwikdl/internal/logger"
	"github.com/ytget/kwikdl/internal/metrics"
	"github.com/ytget/kwikdl/kwik/cipher"
	"github.com/ytget/kwikdl/pkg/client"
	"github.com/ytget/kwikdl/types"
)

const (
	testAlphabet = "sFhJWxlYrT"
	testOffset   = 47
	testRadix    = 5

	sharedURL  = "https://kwik.si/e/abc"
	hostingURL = "https://kwik.si/f/xyz"
	submitURL  = "https://kwik.si/d/xyz"
	mediaURL   = "https://cdn.example/video.mp4"
)

// packedPage wraps plain in an obfuscated call the way the site serves it.
func packedPage(t *testing.T, plain string) string {
	t.Helper()
	enc, err := cipher.EncodeSegment(plain, testAlphabet, testOffset, testRadix)
	if err != nil {
		t.Fatalf("EncodeSegment: %v", err)
	}
	return fmt.Sprintf(`<html><head><link rel="canonical" href="https://kwik.si/f/xyz"></head><body>
<script>eval(function(h,u,n,t,e,r){r="";return decodeURIComponent(escape(r))}(%q,42,%q,%d,%d,24))</script>
</body></html>`, enc, testAlphabet, testOffset, testRadix)
}

func sharedPage(t *testing.T) string {
	t.Helper()
	enc, err := cipher.EncodeSegment(`<a class="button" href="https://kwik.si/d/xyz">Download</a>`, testAlphabet, testOffset, testRadix)
	if err != nil {
		t.Fatalf("EncodeSegment: %v", err)
	}
	return fmt.Sprintf(`<html><body><script>eval(function(h,u,n,t,e,r){}(%q,42,%q,%d,%d,24))</script></body></html>`,
		enc, testAlphabet, testOffset, testRadix)
}

func hostingPage(t *testing.T) string {
	return packedPage(t, `<form action="https://kwik.si/d/xyz" method="POST"><input type="hidden" name="_token" value="tok123"><button type="submit">Download</button></form>`)
}

type fetchCall struct {
	Method string
	URL    string
	Opts   types.FetchOptions
}

type route func(call fetchCall) (*types.FetchResult, error)

// fakeFetcher answers from a route table keyed by "METHOD url".
type fakeFetcher struct {
	mu     sync.Mutex
	routes map[string]route
	calls  []fetchCall
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{routes: make(map[string]route)}
}

func (f *fakeFetcher) handle(method, rawURL string, r route) *fakeFetcher {
	f.routes[method+" "+rawURL] = r
	return f
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string, opts types.FetchOptions) (*types.FetchResult, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	call := fetchCall{Method: method, URL: rawURL, Opts: opts}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	r, ok := f.routes[method+" "+rawURL]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &client.NetworkError{URL: rawURL, Err: err}
	}
	if !ok {
		return &types.FetchResult{URL: rawURL, StatusCode: http.StatusNotFound, Headers: http.Header{}, Body: "not found"}, nil
	}
	return r(call)
}

func (f *fakeFetcher) count(method, rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method && c.URL == rawURL {
			n++
		}
	}
	return n
}

func okPage(rawURL, body string, header http.Header) route {
	if header == nil {
		header = http.Header{}
	}
	return func(fetchCall) (*types.FetchResult, error) {
		return &types.FetchResult{URL: rawURL, StatusCode: http.StatusOK, Headers: header, Body: body}, nil
	}
}

func redirectTo(location, body string) route {
	return func(c fetchCall) (*types.FetchResult, error) {
		return &types.FetchResult{
			URL:        c.URL,
			StatusCode: http.StatusFound,
			Headers:    http.Header{"Location": {location}},
			Body:       body,
		}, nil
	}
}

func newTestResolver(f client.Fetcher) *Resolver {
	return New().WithFetcher(f).WithBackoff(0).WithLogger(logger.Nop())
}

// fullSite serves the three exchanges of a successful resolution.
func fullSite(t *testing.T) *fakeFetcher {
	t.Helper()
	return newFakeFetcher().
		handle(http.MethodGet, sharedURL, okPage(sharedURL, sharedPage(t), nil)).
		handle(http.MethodGet, hostingURL, okPage(hostingURL, hostingPage(t), http.Header{
			"Set-Cookie": {"kwik_session=sess1; path=/; HttpOnly"},
		})).
		handle(http.MethodPost, submitURL, redirectTo(mediaURL, `<a href="https://wrong.example/body.mp4">x</a>`))
}

func TestIsValidTargetURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://kwik.si/f/abc123", true},
		{"http://kwik.cx/e/abc", true},
		{"https://KWIK.SX/f/abc", true},
		{"https://cdn.kwik.li/f/abc", true},
		{"  https://kwik.si/f/abc  ", true},
		{"https://example.com/f/abc123", false},
		{"https://kwik.si.evil.com/f/abc", false},
		{"https://kwik.xyz/f/abc", false},
		{"https://notkwik.si/f/abc", false},
		{"ftp://kwik.si/f/abc", false},
		{"kwik.si/f/abc", false},
		{"not a url", false},
		{"", false},
		{"https://%zz", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsValidTargetURL(tt.in); got != tt.want {
				t.Errorf("IsValidTargetURL(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWithHostsExtendsValidator(t *testing.T) {
	r := New().WithHosts("mirror.example", " ")
	if !r.IsValidTargetURL("https://mirror.example/f/abc") {
		t.Error("added host should be accepted")
	}
	if !r.IsValidTargetURL("https://kwik.si/f/abc") {
		t.Error("default hosts should still be accepted")
	}
	if IsValidTargetURL("https://mirror.example/f/abc") {
		t.Error("package validator must not see resolver hosts")
	}
}

func TestResolveFollowsSubmissionRedirect(t *testing.T) {
	f := fullSite(t)
	res, err := newTestResolver(f).Resolve(context.Background(), sharedURL)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Success || res.Partial || res.Error != "" || res.Warning != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.IntermediateLink != hostingURL {
		t.Errorf("IntermediateLink = %q, want %q", res.IntermediateLink, hostingURL)
	}
	if res.FinalLink != mediaURL || res.DirectLink != mediaURL {
		t.Errorf("FinalLink = %q, DirectLink = %q, want %q", res.FinalLink, res.DirectLink, mediaURL)
	}
	if res.Message != MessageSuccess {
		t.Errorf("Message = %q", res.Message)
	}

	var post *fetchCall
	for i := range f.calls {
		if f.calls[i].Method == http.MethodPost {
			post = &f.calls[i]
		}
	}
	if post == nil {
		t.Fatal("form was not submitted")
	}
	if post.URL != submitURL {
		t.Errorf("submitted to %q, want %q", post.URL, submitURL)
	}
	if got := post.Opts.Form.Get("_token"); got != "tok123" {
		t.Errorf("_token = %q", got)
	}
	if got := post.Opts.Headers["Referer"]; got != hostingURL {
		t.Errorf("Referer = %q", got)
	}
	if got := post.Opts.Headers["Cookie"]; got != "kwik_session=sess1" {
		t.Errorf("Cookie = %q", got)
	}
}

func TestResolveReadsRedirectFromBody(t *testing.T) {
	f := fullSite(t).handle(http.MethodPost, submitURL, okPage(submitURL,
		`<script>window.location = "https://cdn.example/body.mp4";</script>`, nil))
	res, err := newTestResolver(f).Resolve(context.Background(), sharedURL)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.FinalLink != "https://cdn.example/body.mp4" || res.Partial {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestResolveRelativeLocation(t *testing.T) {
	f := fullSite(t).handle(http.MethodPost, submitURL, redirectTo("/files/video.mp4", ""))
	res, err := newTestResolver(f).Resolve(context.Background(), sharedURL)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.FinalLink != "https://kwik.si/files/video.mp4" {
		t.Errorf("FinalLink = %q", res.FinalLink)
	}
}

func TestResolveOmitsEmptySessionCookie(t *testing.T) {
	f := fullSite(t).handle(http.MethodGet, hostingURL, okPage(hostingURL, hostingPage(t), nil))
	if _, err := newTestResolver(f).Resolve(context.Background(), sharedURL); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, c := range f.calls {
		if c.Method != http.MethodPost {
			continue
		}
		if _, ok := c.Opts.Headers["Cookie"]; ok {
			t.Errorf("Cookie header sent without a session: %v", c.Opts.Headers)
		}
	}
}

func TestResolvePlainLinkOnSharedPage(t *testing.T) {
	f := fullSite(t).handle(http.MethodGet, sharedURL, okPage(sharedURL,
		`<a href="https://kwik.si/d/xyz">Download</a>`, nil))
	res, err := newTestResolver(f).Resolve(context.Background(), sharedURL)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.IntermediateLink != hostingURL || res.FinalLink != mediaURL {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestResolvePartialWhenHostingPageHasNoCall(t *testing.T) {
	f := fullSite(t).handle(http.MethodGet, hostingURL, okPage(hostingURL, "<html><body>Please wait</body></html>", nil))
	res, err := newTestResolver(f).Resolve(context.Background(), sharedURL)
	if err != nil {
		t.Fatalf("partial result must not return an error: %v", err)
	}
	if !res.Success || !res.Partial || res.Error != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.FinalLink != hostingURL || res.DirectLink != hostingURL {
		t.Errorf("FinalLink = %q, want intermediate %q", res.FinalLink, hostingURL)
	}
	if res.Message == "" || !strings.HasPrefix(res.Message, "Kwik link extracted successfully.") {
		t.Errorf("Message = %q", res.Message)
	}
	if !strings.Contains(res.Warning, errs.ErrExtraction.Error()) {
		t.Errorf("Warning = %q, want extraction failure", res.Warning)
	}
	if n := f.count(http.MethodGet, hostingURL); n != defaultAttempts {
		t.Errorf("hosting page fetched %d times, want %d", n, defaultAttempts)
	}
	if n := f.count(http.MethodPost, submitURL); n != 0 {
		t.Errorf("form submitted %d times without a form", n)
	}
}

func TestResolveIgnoresUndecodedHostingMarkup(t *testing.T) {
	page := `<html><head><link rel="canonical" href="https://kwik.si/f/xyz"></head><body>
<a href="https://kwik.si/f/xyz">Reload</a>
<form method="POST"><input type="hidden" name="_token" value="abc"></form>
</body></html>`
	f := fullSite(t).
		handle(http.MethodGet, hostingURL, okPage(hostingURL, page, nil)).
		handle(http.MethodPost, hostingURL, redirectTo(hostingURL+"?login", ""))

	res, err := newTestResolver(f).Resolve(context.Background(), sharedURL)
	if err != nil {
		t.Fatalf("partial result must not return an error: %v", err)
	}
	if !res.Success || !res.Partial || res.FinalLink != hostingURL || res.IntermediateLink != hostingURL {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Message != MessagePartial {
		t.Errorf("Message = %q, want %q", res.Message, MessagePartial)
	}
	if n := f.count(http.MethodPost, hostingURL) + f.count(http.MethodPost, submitURL); n != 0 {
		t.Errorf("form submitted %d times from undecoded markup", n)
	}
}

func TestResolvePartialAfterNetworkFailures(t *testing.T) {
	attempt := 0
	f := fullSite(t).handle(http.MethodGet, hostingURL, func(c fetchCall) (*types.FetchResult, error) {
		attempt++
		return nil, &client.NetworkError{URL: c.URL, Err: fmt.Errorf("connection reset on attempt %d", attempt)}
	})
	res, err := newTestResolver(f).Resolve(context.Background(), sharedURL)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Partial || res.FinalLink != hostingURL {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(res.Warning, "attempt 3") || !strings.Contains(res.Warning, errs.ErrNetwork.Error()) {
		t.Errorf("Warning = %q, want the last network failure", res.Warning)
	}
	if attempt != 3 {
		t.Errorf("attempts = %d, want 3", attempt)
	}
}

func TestResolveRecoversOnRetry(t *testing.T) {
	attempt := 0
	good := okPage(hostingURL, hostingPage(t), nil)
	f := fullSite(t).handle(http.MethodGet, hostingURL, func(c fetchCall) (*types.FetchResult, error) {
		attempt++
		if attempt == 1 {
			return nil, &client.NetworkError{URL: c.URL, Err: errors.New("timeout")}
		}
		return good(c)
	})
	res, err := newTestResolver(f).Resolve(context.Background(), sharedURL)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Partial || res.FinalLink != mediaURL {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestResolveSubmissionWithoutRedirect(t *testing.T) {
	f := fullSite(t).handle(http.MethodPost, submitURL, okPage(submitURL, "<html>expired</html>", nil))
	res, err := newTestResolver(f).WithAttempts(2).Resolve(context.Background(), sharedURL)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Partial || !strings.Contains(res.Warning, errs.ErrSubmission.Error()) {
		t.Errorf("unexpected result: %+v", res)
	}
	if n := f.count(http.MethodPost, submitURL); n != 2 {
		t.Errorf("submissions = %d, want 2", n)
	}
}

func TestResolveHardFailures(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		page    route
		wantErr error
		fetches int
	}{
		{
			name:    "invalid url",
			url:     "https://example.com/f/abc123",
			wantErr: errs.ErrValidation,
			fetches: 0,
		},
		{
			name:    "nothing on shared page",
			url:     sharedURL,
			page:    okPage(sharedURL, "<html>gone</html>", nil),
			wantErr: errs.ErrExtraction,
			fetches: 3,
		},
		{
			name: "server error",
			url:  sharedURL,
			page: func(c fetchCall) (*types.FetchResult, error) {
				return &types.FetchResult{URL: c.URL, StatusCode: http.StatusBadGateway, Headers: http.Header{}}, nil
			},
			wantErr: errs.ErrNetwork,
			fetches: 3,
		},
		{
			name:    "decoded script without link",
			url:     sharedURL,
			page:    okPage(sharedURL, strings.Replace(packedPage(t, "no link here"), `href="https://kwik.si/f/xyz"`, "", 1), nil),
			wantErr: errs.ErrExtraction,
			fetches: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher()
			if tt.page != nil {
				f.handle(http.MethodGet, tt.url, tt.page)
			}
			res, err := newTestResolver(f).Resolve(context.Background(), tt.url)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if res == nil || res.Success || res.Error == "" || res.FinalLink != "" {
				t.Errorf("unexpected result: %+v", res)
			}
			if n := f.count(http.MethodGet, tt.url); n != tt.fetches {
				t.Errorf("fetches = %d, want %d", n, tt.fetches)
			}
		})
	}
}

func TestResolveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := New().WithFetcher(fullSite(t)).WithLogger(logger.Nop()).Resolve(ctx, sharedURL)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Success {
		t.Errorf("unexpected result: %+v", res)
	}
}

// stubEngine stands in for a JS engine.
type stubEngine struct {
	out   string
	err   error
	calls int
}

func (e *stubEngine) Name() string { return "stub" }

func (e *stubEngine) Evaluate(ctx context.Context, script string) (string, error) {
	e.calls++
	if !strings.Contains(script, "eval(") {
		return "", errors.New("not a packed script")
	}
	return e.out, e.err
}

func TestResolveScriptEngineFallback(t *testing.T) {
	// The native decoder yields text without a link, so the engine must run.
	shared := strings.Replace(packedPage(t, "packed by a newer packer"), `href="https://kwik.si/f/xyz"`, "", 1)
	f := fullSite(t).handle(http.MethodGet, sharedURL, okPage(sharedURL, shared, nil))

	engine := &stubEngine{out: `<a href="https://kwik.si/d/xyz">Download</a>`}
	res, err := newTestResolver(f).WithScriptEngine(engine).Resolve(context.Background(), sharedURL)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if engine.calls != 1 {
		t.Errorf("engine calls = %d, want 1", engine.calls)
	}
	if res.IntermediateLink != hostingURL || res.FinalLink != mediaURL {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestResolveSkipsEngineWhenNativeDecodeWorks(t *testing.T) {
	engine := &stubEngine{err: errors.New("must not run")}
	res, err := newTestResolver(fullSite(t)).WithScriptEngine(engine).Resolve(context.Background(), sharedURL)
	if err != nil || res.FinalLink != mediaURL {
		t.Fatalf("Resolve = %+v, %v", res, err)
	}
	if engine.calls != 0 {
		t.Errorf("engine calls = %d, want 0", engine.calls)
	}
}

func TestResolveRecordsMetrics(t *testing.T) {
	m := metrics.New()
	if _, err := newTestResolver(fullSite(t)).WithMetrics(m).Resolve(context.Background(), sharedURL); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`kwikdl_resolutions_total{outcome="success"} 1`,
		`kwikdl_stage_attempts_total{result="ok",stage="initial"} 1`,
		`kwikdl_stage_attempts_total{result="ok",stage="submission"} 1`,
		`kwikdl_fetches_total{method="POST",status="3xx"} 1`,
		`kwikdl_fetches_total{method="GET",status="2xx"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics should contain %q", want)
		}
	}
}

func TestResolveAllKeepsOrder(t *testing.T) {
	other := "https://kwik.cx/e/other"
	f := fullSite(t).handle(http.MethodGet, other, okPage(other, `"https://kwik.cx/f/other"`, nil))
	urls := []string{sharedURL, "not a url", other, sharedURL}

	results := newTestResolver(f).ResolveAll(context.Background(), urls, 3)
	if len(results) != len(urls) {
		t.Fatalf("got %d results, want %d", len(results), len(urls))
	}
	if results[0].FinalLink != mediaURL || results[3].FinalLink != mediaURL {
		t.Errorf("results[0,3] = %+v, %+v", results[0], results[3])
	}
	if results[1].Success || results[1].Error == "" {
		t.Errorf("results[1] = %+v, want failure", results[1])
	}
	if !results[2].Partial || results[2].FinalLink != "https://kwik.cx/f/other" {
		t.Errorf("results[2] = %+v, want partial", results[2])
	}

	if got := newTestResolver(f).ResolveAll(context.Background(), nil, 4); len(got) != 0 {
		t.Errorf("empty input gave %d results", len(got))
	}
}

// rewriteTransport sends every request to target, keeping path and query.
type rewriteTransport struct {
	target *url.URL
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func TestResolveOverHTTP(t *testing.T) {
	shared := sharedPage(t)
	hosting := hostingPage(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/e/abc":
			_, _ = w.Write([]byte(shared))
		case r.Method == http.MethodGet && r.URL.Path == "/f/xyz":
			http.SetCookie(w, &http.Cookie{Name: "kwik_session", Value: "sess-http", Path: "/"})
			_, _ = w.Write([]byte(hosting))
		case r.Method == http.MethodPost && r.URL.Path == "/d/xyz":
			c, err := r.Cookie("kwik_session")
			if err != nil || c.Value != "sess-http" || r.PostFormValue("_token") != "tok123" || r.Referer() != hostingURL {
				http.Error(w, "bad submission", http.StatusForbidden)
				return
			}
			http.Redirect(w, r, mediaURL, http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	target, _ := url.Parse(server.URL)
	r := New().WithHTTPClient(&http.Client{Transport: &rewriteTransport{target: target}}).
		WithBackoff(0).WithLogger(logger.Nop())

	res, err := r.Resolve(context.Background(), sharedURL)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Partial || res.FinalLink != mediaURL {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestDownloadSavesFinalLink(t *testing.T) {
	payload := []byte("fake mp4 payload")
	var referer string
	var mu sync.Mutex
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		referer = r.Referer()
		mu.Unlock()
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(payload)))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(payload)
	}))
	defer media.Close()

	final := media.URL + "/files/My%20Episode.mp4"
	f := fullSite(t).handle(http.MethodPost, submitURL, redirectTo(final, ""))
	dir := t.TempDir()

	var last Progress
	res, path, err := newTestResolver(f).Download(context.Background(), sharedURL, DownloadOptions{
		OutputPath:   dir,
		HTTPClient:   media.Client(),
		ProgressFunc: func(p Progress) { last = p },
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.FinalLink != final {
		t.Errorf("FinalLink = %q", res.FinalLink)
	}
	if path != filepath.Join(dir, "My Episode.mp4") {
		t.Errorf("path = %q", path)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != string(payload) {
		t.Fatalf("file content = %q (%v)", got, err)
	}
	mu.Lock()
	defer mu.Unlock()
	if referer != hostingURL {
		t.Errorf("Referer = %q, want %q", referer, hostingURL)
	}
	if last.DownloadedSize != int64(len(payload)) {
		t.Errorf("progress = %+v", last)
	}
}

func TestDownloadRefusesPartialResult(t *testing.T) {
	f := fullSite(t).handle(http.MethodGet, hostingURL, okPage(hostingURL, "<html></html>", nil))
	res, path, err := newTestResolver(f).Download(context.Background(), sharedURL, DownloadOptions{OutputPath: t.TempDir()})
	if !errors.Is(err, errs.ErrSubmission) {
		t.Fatalf("err = %v, want ErrSubmission", err)
	}
	if path != "" || res == nil || !res.Partial {
		t.Errorf("path = %q, result = %+v", path, res)
	}
}
