package cipher

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error codes
const (
	ErrCodeInvalidRadix      = "INVALID_RADIX"
	ErrCodeMissingSeparator  = "MISSING_SEPARATOR"
	ErrCodeNotInvertible     = "NOT_INVERTIBLE"
	ErrCodeScriptNotFound    = "SCRIPT_NOT_FOUND"
	ErrCodeJSExecutionFailed = "JS_EXECUTION_FAILED"
	ErrCodeJSTimeout         = "JS_TIMEOUT"
	ErrCodeEvalNotCalled     = "EVAL_NOT_CALLED"
	ErrCodeUnknownEngine     = "UNKNOWN_ENGINE"
)

// Error represents a structured error with code and details
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MarshalJSON implements json.Marshaler
func (e *Error) MarshalJSON() ([]byte, error) {
	type Alias Error
	return json.Marshal(&struct {
		*Alias
		Error string `json:"error"`
	}{
		Alias: (*Alias)(e),
		Error: e.Error(),
	})
}

// NewError creates a new Error with the given code and message
func NewError(code string, message string, details ...any) *Error {
	e := &Error{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

func hasCode(err error, codes ...string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	for _, c := range codes {
		if e.Code == c {
			return true
		}
	}
	return false
}

// IsInvalidParams returns true if the obfuscation parameters cannot be decoded
func IsInvalidParams(err error) bool {
	return hasCode(err, ErrCodeInvalidRadix, ErrCodeMissingSeparator)
}

// IsTimeout returns true if script evaluation was interrupted
func IsTimeout(err error) bool {
	return hasCode(err, ErrCodeJSTimeout)
}

// IsNotFound returns true if there was no script to evaluate
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeScriptNotFound)
}

// IsJSError returns true if the script failed or never produced a payload
func IsJSError(err error) bool {
	return hasCode(err, ErrCodeJSExecutionFailed, ErrCodeEvalNotCalled)
}
