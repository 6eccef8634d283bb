package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, 0},
		{"untyped", base, KindFailure},
		{"not found", NotFound("X", "missing"), KindNotFound},
		{"wrapped external", fmt.Errorf("ctx: %w", ExternalService("opensky", "OPENSKY_ERROR", "down", 503, nil)), KindExternalService},
		{"conflict", Conflict("C", "busy"), KindConflict},
		{"validation", Validation("V", "bad"), KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrapAndMessage(t *testing.T) {
	cause := errors.New("connection refused")
	err := ExternalService("opensky", "OPENSKY_ERROR", "Failed to fetch flights", 0, cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable through Unwrap")
	}
	if Message(err) != "Failed to fetch flights" {
		t.Errorf("Message() = %q", Message(err))
	}
	if !Is(err, KindExternalService) {
		t.Error("expected external service kind")
	}

	withStatus := ExternalService("opensky", "OPENSKY_ERROR", "bad status", 503, nil)
	if got := withStatus.Error(); got != "OPENSKY_ERROR: bad status (status 503)" {
		t.Errorf("Error() = %q", got)
	}
}
