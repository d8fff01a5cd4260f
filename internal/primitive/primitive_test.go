package primitive

import (
	"errors"
	"fmt"
	"testing"
)

func TestClampTimeout(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"zero uses default", 0, DefaultTimeoutMs},
		{"negative uses default", -100, DefaultTimeoutMs},
		{"below floor", 10, MinTimeoutMs},
		{"at floor", MinTimeoutMs, MinTimeoutMs},
		{"in range", 45000, 45000},
		{"at ceiling", MaxTimeoutMs, MaxTimeoutMs},
		{"above ceiling", MaxTimeoutMs + 1, MaxTimeoutMs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampTimeout(tt.in); got != tt.want {
				t.Errorf("ClampTimeout(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsRequired(t *testing.T) {
	s := InputSchema{
		Properties: map[string]Property{
			"a": {Type: "string"},
			"b": {Type: "string"},
		},
		Required: []string{"a"},
	}
	if !s.IsRequired("a") {
		t.Error("a should be required")
	}
	if s.IsRequired("b") {
		t.Error("b should be optional")
	}
	if s.IsRequired("missing") {
		t.Error("unknown parameters are never required")
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("subprocess spawning", `call to exec.Command`)
	if err.Error() != "validation failed: subprocess spawning (call to exec.Command)" {
		t.Errorf("Unexpected message: %s", err.Error())
	}

	bare := NewValidationError("empty name", "")
	if bare.Error() != "validation failed: empty name" {
		t.Errorf("Unexpected message: %s", bare.Error())
	}

	if !IsValidation(err) {
		t.Error("IsValidation missed a ValidationError")
	}
	wrapped := fmt.Errorf("create failed: %w", err)
	if !IsValidation(wrapped) {
		t.Error("IsValidation missed a wrapped ValidationError")
	}
	if IsValidation(errors.New("plain")) {
		t.Error("IsValidation matched a plain error")
	}
	if IsValidation(ErrConflict) {
		t.Error("IsValidation matched a sentinel error")
	}
}
