package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/ytget/kwikdl/errs"
)

const headerRequestID = "X-Request-ID"

type ctxKey int

const requestIDKey ctxKey = iota

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestID keeps a caller-supplied X-Request-ID or assigns a new one.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// cors sets the CORS headers and answers preflight requests with 204.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.cfg.AllowedOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+headerRequestID)
		h.Set("Access-Control-Expose-Headers", headerRequestID)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// instrument records metrics and a log line per request, labelled by route template.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(start)
		s.metrics.ObserveRequest(r.Method, route, wrapped.statusCode, elapsed)
		s.log.Debug("request", map[string]interface{}{
			"request_id": requestIDFrom(r.Context()),
			"method":     r.Method,
			"route":      route,
			"status":     wrapped.statusCode,
			"elapsed":    elapsed.String(),
		})
	})
}

// rateLimit answers 429 once a client exceeds its token bucket.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions && !s.limiters.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, errs.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientLimiters holds one token bucket per client address.
type clientLimiters struct {
	limit rate.Limit
	burst int
	m     sync.Map
}

func newClientLimiters(perSecond float64, burst int) *clientLimiters {
	if perSecond <= 0 {
		return &clientLimiters{}
	}
	if burst < 1 {
		burst = 1
	}
	return &clientLimiters{limit: rate.Limit(perSecond), burst: burst}
}

func (c *clientLimiters) allow(key string) bool {
	if c.limit == 0 {
		return true
	}
	if v, ok := c.m.Load(key); ok {
		return v.(*rate.Limiter).Allow()
	}
	v, _ := c.m.LoadOrStore(key, rate.NewLimiter(c.limit, c.burst))
	return v.(*rate.Limiter).Allow()
}

// clientIP prefers the first X-Forwarded-For hop, then the remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
