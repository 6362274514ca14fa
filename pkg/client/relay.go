package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ytget/kwikdl/types"
)

// errRelayMethod is returned for requests a relay cannot forward.
var errRelayMethod = errors.New("relay forwards GET requests only")

// Relay is a Fetcher that goes through a pass-through endpoint answering
// GET <base>/<escaped url> with a types.RelayPayload.
type Relay struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewRelay returns a Relay for baseURL. A nil client uses the tuned default transport.
func NewRelay(baseURL string, hc *http.Client) *Relay {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout, Transport: defaultTransport}
	}
	return &Relay{BaseURL: strings.TrimRight(baseURL, "/"), HTTPClient: hc}
}

// Fetch asks the relay for rawURL. Form submissions and non-GET methods fail
// with a NetworkError.
func (r *Relay) Fetch(ctx context.Context, rawURL string, opts types.FetchOptions) (*types.FetchResult, error) {
	if opts.Form != nil || (opts.Method != "" && !strings.EqualFold(opts.Method, http.MethodGet)) {
		return nil, &NetworkError{URL: rawURL, Err: errRelayMethod}
	}

	endpoint := r.BaseURL + "/" + url.PathEscape(rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	req.Header.Set(headerAccept, "application/json")

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &NetworkError{URL: rawURL, Err: fmt.Errorf("relay status %d", resp.StatusCode)}
	}

	var payload types.RelayPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return nil, &NetworkError{URL: rawURL, Err: fmt.Errorf("decode relay payload: %w", err)}
	}

	status := payload.Status
	if status == 0 {
		status = http.StatusOK
	}
	headers := payload.Headers
	if headers == nil {
		headers = http.Header{}
	}
	return &types.FetchResult{
		URL:        rawURL,
		StatusCode: status,
		Headers:    headers,
		Body:       payload.Contents,
	}, nil
}
