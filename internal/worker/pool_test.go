package worker

import (
	"errors"
	"fmt"
	"testing"

	"charles-backend/internal/services"
)

func TestRetryable(t *testing.T) {
	upstream := &services.UpstreamError{Provider: "gemini", Message: "model overloaded"}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transient failure", errors.New("connection reset"), true},
		{"provider failure", upstream, false},
		{"wrapped provider failure", fmt.Errorf("failed to generate: %w", upstream), false},
		{"wrapped transient failure", fmt.Errorf("failed to get task: %w", errors.New("timeout")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(tt.err); got != tt.want {
				t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
