package common

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"direct", NewError(ErrRecognition, "all passes failed", nil), ErrRecognition},
		{"wrapped", fmt.Errorf("stage: %w", NewError(ErrUpstream, "quota", nil)), ErrUpstream},
		{"plain error", errors.New("boom"), ErrInternal},
		{"nil cause chain", NewError(ErrInput, "bad payload", errors.New("decode")), ErrInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestErrorStringIncludesViolations(t *testing.T) {
	err := NewParseError("schema validation failed", "{}", []string{
		"missing required field: total",
		"invalid paymentStatus",
	})
	msg := err.Error()
	if !strings.Contains(msg, string(ErrExtractionParse)) {
		t.Errorf("message %q missing kind", msg)
	}
	if !strings.Contains(msg, "missing required field: total") {
		t.Errorf("message %q missing violation detail", msg)
	}
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("network down")
	err := NewError(ErrUpstream, "llm call failed", cause)
	if !errors.Is(err, cause) {
		t.Error("wrapped cause must survive errors.Is")
	}
}
