package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"validation", ValidationError("bad input"), ExitValidation},
		{"not found", NotFoundError("abc"), ExitNotFound},
		{"precondition", PreconditionError("not yet"), ExitPrecondition},
		{"wrapped precondition", fmt.Errorf("finalize: %w", PreconditionError("not yet")), ExitPrecondition},
		{"plain error", errors.New("boom"), ExitValidation},
		{"sentinel", ErrRateLimited, ExitValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	err := ValidationError("unknown dependency id: %s", "abc")
	if err.Code != CodeValidation {
		t.Errorf("Code = %s, want %s", err.Code, CodeValidation)
	}
	if err.Error() != "VALIDATION: unknown dependency id: abc" {
		t.Errorf("Error() = %q", err.Error())
	}
}
