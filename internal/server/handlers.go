package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ytget/kwikdl/errs"
	"github.com/ytget/kwikdl/types"
)

type resolveRequest struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Success: false, Error: err.Error()})
}

// handleResolve answers 400 for a bad body or URL, 422 for a failed
// resolution and 200 for full or partial results.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	body := io.LimitReader(r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: malformed request body", errs.ErrValidation))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ResolveTimeout)
	defer cancel()

	res, err := s.resolver.Resolve(ctx, req.URL)
	switch {
	case errors.Is(err, errs.ErrValidation):
		writeJSON(w, http.StatusBadRequest, res)
	case err != nil:
		s.log.Warn("resolution failed", map[string]interface{}{
			"request_id": requestIDFrom(r.Context()),
			"url":        req.URL,
			"error":      err.Error(),
		})
		writeJSON(w, http.StatusUnprocessableEntity, res)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// handleFetch relays one GET to a target-site URL and returns the raw exchange.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	target, err := url.PathUnescape(mux.Vars(r)["target"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: bad target encoding", errs.ErrValidation))
		return
	}
	// An unescaped target leaves its query on the outer request.
	if r.URL.RawQuery != "" && !strings.Contains(target, "?") {
		target += "?" + r.URL.RawQuery
	}
	if !s.resolver.IsValidTargetURL(target) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", errs.ErrValidation, target))
		return
	}

	res, err := s.fetcher.Fetch(r.Context(), target, types.FetchOptions{})
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	headers := res.Headers
	if headers == nil {
		headers = http.Header{}
	}
	writeJSON(w, http.StatusOK, types.RelayPayload{
		Contents: res.Body,
		Headers:  headers,
		Status:   res.StatusCode,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
