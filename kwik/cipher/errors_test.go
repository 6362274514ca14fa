package cipher

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	e := NewError(ErrCodeInvalidRadix, "radix out of range", 99)
	if got := e.Error(); got != "INVALID_RADIX: radix out of range (99)" {
		t.Errorf("Error() = %q", got)
	}
	e = NewError(ErrCodeEvalNotCalled, "script finished without calling eval")
	if got := e.Error(); got != "EVAL_NOT_CALLED: script finished without calling eval" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrorMarshalJSON(t *testing.T) {
	data, err := json.Marshal(NewError(ErrCodeJSTimeout, "script interrupted", "timeout"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"code":"JS_TIMEOUT"`, `"message":"script interrupted"`, `"details":"timeout"`, `"error":"JS_TIMEOUT: script interrupted (timeout)"`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s should contain %s", s, want)
		}
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		invalid  bool
		timeout  bool
		notFound bool
		jsError  bool
	}{
		{name: "invalid radix", err: NewError(ErrCodeInvalidRadix, "x"), invalid: true},
		{name: "missing separator", err: NewError(ErrCodeMissingSeparator, "x"), invalid: true},
		{name: "timeout", err: NewError(ErrCodeJSTimeout, "x"), timeout: true},
		{name: "script not found", err: NewError(ErrCodeScriptNotFound, "x"), notFound: true},
		{name: "execution failed", err: NewError(ErrCodeJSExecutionFailed, "x"), jsError: true},
		{name: "eval not called", err: NewError(ErrCodeEvalNotCalled, "x"), jsError: true},
		{name: "wrapped timeout", err: fmt.Errorf("stage 1: %w", NewError(ErrCodeJSTimeout, "x")), timeout: true},
		{name: "plain error", err: errors.New("boom")},
		{name: "nil", err: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInvalidParams(tt.err); got != tt.invalid {
				t.Errorf("IsInvalidParams = %v, want %v", got, tt.invalid)
			}
			if got := IsTimeout(tt.err); got != tt.timeout {
				t.Errorf("IsTimeout = %v, want %v", got, tt.timeout)
			}
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound = %v, want %v", got, tt.notFound)
			}
			if got := IsJSError(tt.err); got != tt.jsError {
				t.Errorf("IsJSError = %v, want %v", got, tt.jsError)
			}
		})
	}
}
