package errs

import (
	"errors"
)

var (
	// ErrValidation indicates that the input is not a recognized target URL.
	ErrValidation = errors.New("invalid target url")
	// ErrExtraction indicates that a page held neither a link nor obfuscation parameters.
	ErrExtraction = errors.New("link extraction failed")
	// ErrDecode indicates that extracted obfuscation parameters cannot be decoded.
	ErrDecode = errors.New("decode failed")
	// ErrNetwork indicates a transport-level failure (DNS, connection, timeout, bad status).
	ErrNetwork = errors.New("network error")
	// ErrSubmission indicates that the form submission produced no redirect location.
	ErrSubmission = errors.New("submission failed")
	// ErrRateLimited indicates throttling by the local server.
	ErrRateLimited = errors.New("rate limited")
)
