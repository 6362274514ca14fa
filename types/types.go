package types

import (
	"net/http"
	"net/url"
	"strings"
)

// ObfuscationParameters holds the four values a page embeds to hide a link.
type ObfuscationParameters struct {
	CipherText string
	Alphabet   string
	Offset     int
	Radix      int
}

// FetchOptions carries per-request overrides for a fetch.
// An empty Method means GET; a non-nil Form is sent as a URL-encoded POST body.
type FetchOptions struct {
	Method  string
	Headers map[string]string
	Form    url.Values
}

// FetchResult is an immutable snapshot of one HTTP exchange.
type FetchResult struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       string
}

// IsRedirect reports whether the response status is 3xx.
func (r *FetchResult) IsRedirect() bool {
	return r.StatusCode >= http.StatusMultipleChoices && r.StatusCode < http.StatusBadRequest
}

// Location returns the redirect target header, if any.
func (r *FetchResult) Location() string {
	if r.Headers == nil {
		return ""
	}
	return strings.TrimSpace(r.Headers.Get("Location"))
}

// Cookie returns the value of the named cookie set by the response, or an
// empty string when the response did not set it.
func (r *FetchResult) Cookie(name string) string {
	if r.Headers == nil {
		return ""
	}
	for _, line := range r.Headers.Values("Set-Cookie") {
		c, err := http.ParseSetCookie(line)
		if err != nil {
			continue
		}
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// ExtractionKind tells what the extractor found on a page.
type ExtractionKind int

const (
	// NotFound means the page held neither a link nor obfuscation parameters.
	NotFound ExtractionKind = iota
	// DirectLink means a literal target-site link was found.
	DirectLink
	// ObfuscatedLink means obfuscation parameters were found and must be decoded.
	ObfuscatedLink
)

var extractionKindNames = map[ExtractionKind]string{
	NotFound:       "not_found",
	DirectLink:     "direct_link",
	ObfuscatedLink: "obfuscated_link",
}

func (k ExtractionKind) String() string {
	if s, ok := extractionKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Extraction is the outcome of scanning one page.
// Link is set for DirectLink, Params for ObfuscatedLink.
type Extraction struct {
	Kind   ExtractionKind
	Link   string
	Params *ObfuscationParameters
	// Script is the inline script that holds the obfuscation call, when it
	// could be located.
	Script string
	// Pattern names the matcher that produced the outcome.
	Pattern string
}

// Found reports whether anything usable was extracted.
func (e Extraction) Found() bool {
	return e.Kind != NotFound
}

// Result is the terminal value of one resolution.
type Result struct {
	Success bool `json:"success"`
	// DirectLink mirrors FinalLink for clients that read the older field name.
	DirectLink       string `json:"directLink,omitempty"`
	FinalLink        string `json:"finalLink,omitempty"`
	IntermediateLink string `json:"intermediateLink,omitempty"`
	Partial          bool   `json:"partial,omitempty"`
	Message          string `json:"message,omitempty"`
	Warning          string `json:"warning,omitempty"`
	Error            string `json:"error,omitempty"`
}

// Failure builds a hard-failure result.
func Failure(err error) *Result {
	return &Result{Success: false, Error: err.Error()}
}

// RelayPayload is the body of the pass-through fetch endpoint.
type RelayPayload struct {
	Contents string      `json:"contents"`
	Headers  http.Header `json:"headers"`
	Status   int         `json:"status"`
}
