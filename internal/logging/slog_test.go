package logging

import (
	"testing"
)

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"empty", "", "<empty>"},
		{"short", "abc", "[token:3 chars]"},
		{"realistic", "ya29.a0AfH6SMBxyz", "[token:17 chars]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeToken(tt.token); got != tt.want {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestErrNilIsOmitted(t *testing.T) {
	attr := Err(nil)
	if attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty group", attr.Key)
	}
}

func TestErrNonNil(t *testing.T) {
	attr := Err(errAlways)
	if attr.Key != KeyError {
		t.Errorf("key = %q, want %q", attr.Key, KeyError)
	}
	if attr.Value.String() != "boom" {
		t.Errorf("value = %q, want %q", attr.Value.String(), "boom")
	}
}

type alwaysError struct{}

func (alwaysError) Error() string { return "boom" }

var errAlways = alwaysError{}

func TestNewLevels(t *testing.T) {
	// Unknown levels fall back to info without panicking.
	for _, level := range []string{"debug", "info", "warn", "warning", "error", "verbose", ""} {
		if logger := New(level); logger == nil {
			t.Errorf("New(%q) returned nil", level)
		}
	}
}
