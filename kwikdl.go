package kwikdl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ytget/kwikdl/errs"
	"github.com/ytget/kwikdl/internal/logger"
	"github.com/ytget/kwikdl/internal/metrics"
	"github.com/ytget/kwikdl/kwik/cipher"
	"github.com/ytget/kwikdl/kwik/extract"
	"github.com/ytget/kwikdl/pkg/client"
	"github.com/ytget/kwikdl/types"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 200 * time.Millisecond
	maxBackoff      = 3 * time.Second

	sessionCookie = "kwik_session"
	tokenField    = "_token"

	headerReferer = "Referer"
	headerCookie  = "Cookie"

	// Stage names used in logs and metrics.
	StageInitial    = "initial"
	StageSubmission = "submission"
)

// Result messages.
const (
	MessageSuccess = "Direct download link extracted successfully!"
	MessagePartial = "Kwik link extracted successfully. The direct download link could not be resolved, open the link in a browser to download."
)

// Resolver turns a shared page URL into a direct media link. It is read-only
// after construction and safe for concurrent use.
type Resolver struct {
	fetcher   client.Fetcher
	extractor *extract.Extractor
	engine    cipher.ScriptEngine
	attempts  int
	backoff   time.Duration
	hosts     []string
	log       *logger.ComponentLogger
	metrics   *metrics.Metrics
}

// New creates a Resolver with the direct HTTP client, three attempts per
// stage and the default host set.
func New() *Resolver {
	return &Resolver{
		fetcher:   client.New(),
		extractor: extract.New(),
		attempts:  defaultAttempts,
		backoff:   defaultBackoff,
		hosts:     append([]string(nil), DefaultHosts...),
		log:       logger.WithComponent(logger.ComponentPipeline),
	}
}

// WithFetcher sets the Fetcher every stage goes through.
func (r *Resolver) WithFetcher(f client.Fetcher) *Resolver {
	if f != nil {
		r.fetcher = f
	}
	return r
}

// WithHTTPClient uses the direct client on top of hc.
func (r *Resolver) WithHTTPClient(hc *http.Client) *Resolver {
	if hc != nil {
		r.fetcher = client.New().WithHTTPClient(hc)
	}
	return r
}

// WithAttempts sets the attempt budget of each stage. Values below one are ignored.
func (r *Resolver) WithAttempts(n int) *Resolver {
	if n >= 1 {
		r.attempts = n
	}
	return r
}

// WithBackoff sets the first delay between attempts. It doubles per retry up
// to three seconds. Zero disables waiting.
func (r *Resolver) WithBackoff(d time.Duration) *Resolver {
	if d < 0 {
		d = 0
	}
	r.backoff = d
	return r
}

// WithScriptEngine enables evaluation of packed scripts when native decoding
// yields nothing usable. A nil engine disables it.
func (r *Resolver) WithScriptEngine(e cipher.ScriptEngine) *Resolver {
	r.engine = e
	return r
}

// WithHosts adds domains accepted by the validator.
func (r *Resolver) WithHosts(hosts ...string) *Resolver {
	for _, h := range hosts {
		if h = strings.TrimSpace(h); h != "" {
			r.hosts = append(r.hosts, h)
		}
	}
	return r
}

// WithExtractor replaces the pattern extractor.
func (r *Resolver) WithExtractor(x *extract.Extractor) *Resolver {
	if x != nil {
		r.extractor = x
	}
	return r
}

// WithLogger sets the logger for the pipeline and its extractor.
func (r *Resolver) WithLogger(l *logger.Logger) *Resolver {
	if l != nil {
		r.log = l.WithComponent(logger.ComponentPipeline)
		r.extractor.WithLogger(l)
	}
	return r
}

// WithMetrics records stage attempts, fetches and outcomes on m.
func (r *Resolver) WithMetrics(m *metrics.Metrics) *Resolver {
	r.metrics = m
	return r
}

// Resolve runs the pipeline for rawURL. A hard failure returns a result with
// Error set together with a non-nil error. Failures after an intermediate
// link was found degrade to a partial result and a nil error.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*types.Result, error) {
	start := time.Now()
	id := uuid.NewString()
	rawURL = strings.TrimSpace(rawURL)

	if !r.IsValidTargetURL(rawURL) {
		err := fmt.Errorf("%w: %q", errs.ErrValidation, rawURL)
		r.log.Warn("rejected url", map[string]interface{}{"id": id, "url": rawURL})
		r.metrics.ObserveResolution(metrics.OutcomeFailure, time.Since(start))
		return types.Failure(err), err
	}

	r.log.Info("resolution started", map[string]interface{}{"id": id, "url": rawURL})

	intermediate, err := r.retry(ctx, id, StageInitial, func(ctx context.Context) (string, error) {
		return r.initialLink(ctx, rawURL)
	})
	if err != nil {
		r.log.Error("resolution failed", map[string]interface{}{"id": id, "error": err.Error()})
		r.metrics.ObserveResolution(metrics.OutcomeFailure, time.Since(start))
		return types.Failure(err), err
	}

	final, err := r.retry(ctx, id, StageSubmission, func(ctx context.Context) (string, error) {
		return r.finalLink(ctx, intermediate)
	})
	if err != nil {
		r.log.Warn("returning intermediate link", map[string]interface{}{
			"id":           id,
			"intermediate": intermediate,
			"warning":      err.Error(),
		})
		r.metrics.ObserveResolution(metrics.OutcomePartial, time.Since(start))
		return &types.Result{
			Success:          true,
			DirectLink:       intermediate,
			FinalLink:        intermediate,
			IntermediateLink: intermediate,
			Partial:          true,
			Message:          MessagePartial,
			Warning:          err.Error(),
		}, nil
	}

	r.log.Info("resolution finished", map[string]interface{}{
		"id":      id,
		"final":   final,
		"elapsed": time.Since(start).String(),
	})
	r.metrics.ObserveResolution(metrics.OutcomeSuccess, time.Since(start))
	return &types.Result{
		Success:          true,
		DirectLink:       final,
		FinalLink:        final,
		IntermediateLink: intermediate,
		Message:          MessageSuccess,
	}, nil
}

// ResolveAll resolves urls with up to concurrency workers. Results keep the
// input order; failures are carried in each result.
func (r *Resolver) ResolveAll(ctx context.Context, urls []string, concurrency int) []*types.Result {
	results := make([]*types.Result, len(urls))
	if len(urls) == 0 {
		return results
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(urls) {
		concurrency = len(urls)
	}

	jobs := make(chan int, len(urls))
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for w := 0; w < concurrency; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				res, _ := r.Resolve(ctx, urls[idx])
				results[idx] = res
			}
		}()
	}
	for i := range urls {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

// retry runs fn up to r.attempts times and returns the last error.
func (r *Resolver) retry(ctx context.Context, id, stage string, fn func(context.Context) (string, error)) (string, error) {
	var lastErr error
	delay := r.backoff
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if attempt > 1 && delay > 0 {
			if err := sleepContext(ctx, delay); err != nil {
				return "", fmt.Errorf("%w: %w", err, lastErr)
			}
			delay *= 2
			if delay > maxBackoff {
				delay = maxBackoff
			}
		}

		link, err := fn(ctx)
		r.metrics.ObserveAttempt(stage, err)
		if err == nil {
			r.log.Debug("stage finished", map[string]interface{}{
				"id":      id,
				"stage":   stage,
				"attempt": attempt,
				"link":    link,
			})
			return link, nil
		}
		lastErr = err
		r.log.Warn("stage attempt failed", map[string]interface{}{
			"id":      id,
			"stage":   stage,
			"attempt": attempt,
			"error":   err.Error(),
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %w", ctxErr, lastErr)
		}
	}
	return "", lastErr
}

// initialLink fetches the shared page and returns the target-site link it
// carries, decoding it when hidden.
func (r *Resolver) initialLink(ctx context.Context, pageURL string) (string, error) {
	page, err := r.fetch(ctx, pageURL, types.FetchOptions{})
	if err != nil {
		return "", err
	}
	if err := client.ExpectOK(page); err != nil {
		return "", err
	}

	ex := r.extractor.Extract(page.Body)
	switch ex.Kind {
	case types.DirectLink:
		return ex.Link, nil
	case types.ObfuscatedLink:
		decoded, derr := cipher.Decode(*ex.Params)
		if derr == nil {
			if link, ok := r.extractor.FindLink(decoded); ok {
				return extract.RewritePath(link), nil
			}
		}
		if out, ok := r.evaluate(ctx, ex.Script); ok {
			if link, ok := r.extractor.FindLink(out); ok {
				return extract.RewritePath(link), nil
			}
		}
		if derr != nil {
			return "", fmt.Errorf("%w: %w", errs.ErrDecode, derr)
		}
		return "", fmt.Errorf("%w: decoded script on %s holds no link", errs.ErrExtraction, pageURL)
	default:
		return "", fmt.Errorf("%w: no link or obfuscated script on %s", errs.ErrExtraction, pageURL)
	}
}

// finalLink runs the hosting-page stages: fetch, decode the form, submit it
// and read the redirect.
func (r *Resolver) finalLink(ctx context.Context, intermediate string) (string, error) {
	page, err := r.fetch(ctx, intermediate, types.FetchOptions{})
	if err != nil {
		return "", err
	}
	if err := client.ExpectOK(page); err != nil {
		return "", err
	}
	session := page.Cookie(sessionCookie)

	form, err := r.hostingForm(ctx, page.Body, intermediate)
	if err != nil {
		return "", err
	}

	headers := map[string]string{headerReferer: intermediate}
	if session != "" {
		headers[headerCookie] = sessionCookie + "=" + session
	}
	resp, err := r.fetch(ctx, form.Action, types.FetchOptions{
		Method:  http.MethodPost,
		Headers: headers,
		Form:    url.Values{tokenField: {form.Token}},
	})
	if err != nil {
		return "", err
	}

	if resp.IsRedirect() {
		if loc := resp.Location(); loc != "" {
			return resolveReference(form.Action, loc), nil
		}
	}
	if link, ok := r.extractor.FindRedirect(resp.Body); ok {
		return link, nil
	}
	return "", fmt.Errorf("%w: status %d from %s without a redirect", errs.ErrSubmission, resp.StatusCode, form.Action)
}

// hostingForm decodes the submission form from the hosting page's obfuscated
// script. Undecoded markup is never searched: the page links to itself.
func (r *Resolver) hostingForm(ctx context.Context, body, pageURL string) (extract.Form, error) {
	ex := r.extractor.FindCall(body)
	if !ex.Found() {
		return extract.Form{}, fmt.Errorf("%w: no obfuscated script on %s", errs.ErrExtraction, pageURL)
	}

	decoded, derr := cipher.Decode(*ex.Params)
	if derr == nil {
		if form, ok := r.extractor.FindForm(decoded); ok {
			return form, nil
		}
	}
	if out, ok := r.evaluate(ctx, ex.Script); ok {
		if form, ok := r.extractor.FindForm(out); ok {
			return form, nil
		}
	}
	if derr != nil {
		return extract.Form{}, fmt.Errorf("%w: %w", errs.ErrDecode, derr)
	}
	return extract.Form{}, fmt.Errorf("%w: submission url or token missing on %s", errs.ErrExtraction, pageURL)
}

// evaluate runs script on the configured engine and returns what it passed to eval.
func (r *Resolver) evaluate(ctx context.Context, script string) (string, bool) {
	if r.engine == nil || script == "" {
		return "", false
	}
	out, err := r.engine.Evaluate(ctx, script)
	if err != nil {
		r.log.Debug("script evaluation failed", map[string]interface{}{
			"engine": r.engine.Name(),
			"error":  err.Error(),
		})
		return "", false
	}
	return out, true
}

func (r *Resolver) fetch(ctx context.Context, rawURL string, opts types.FetchOptions) (*types.FetchResult, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	res, err := r.fetcher.Fetch(ctx, rawURL, opts)
	if err != nil {
		r.metrics.ObserveFetch(method, 0)
		return nil, err
	}
	r.metrics.ObserveFetch(method, res.StatusCode)
	return res, nil
}

// resolveReference makes a Location value absolute against base.
func resolveReference(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	u, err := b.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
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
