package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigError(t *testing.T) {
	tests := []struct {
		name string
		err  *ConfigError
		want string
	}{
		{
			name: "with field",
			err:  NewConfigError("engine.max_iterations", "must be non-negative"),
			want: "config error in engine.max_iterations: must be non-negative",
		},
		{
			name: "without field",
			err:  NewConfigError("", "failed to load config"),
			want: "config error: failed to load config",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandError(t *testing.T) {
	underlyingErr := errors.New("underlying error")
	err := NewCommandError("synthesize", underlyingErr)

	expected := "command synthesize failed: underlying error"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("CommandError should unwrap to the underlying error")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitOK},
		{name: "plain error", err: errors.New("boom"), want: ExitFailure},
		{name: "config error", err: NewConfigError("format", "bad"), want: ExitUsage},
		{name: "needs review", err: NewExitError(ExitNeedsReview, nil), want: ExitNeedsReview},
		{
			name: "wrapped exit error",
			err:  fmt.Errorf("run: %w", NewExitError(ExitStalled, errors.New("stalled"))),
			want: ExitStalled,
		},
		{
			name: "command error wrapping config error",
			err:  NewCommandError("batch", NewConfigError("", "bad")),
			want: ExitUsage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSilent(t *testing.T) {
	if !Silent(NewExitError(ExitNeedsReview, nil)) {
		t.Error("exit error without cause should be silent")
	}
	if Silent(NewExitError(ExitStalled, errors.New("stalled"))) {
		t.Error("exit error with cause should be printed")
	}
	if Silent(errors.New("boom")) {
		t.Error("plain errors should be printed")
	}
	if got := NewExitError(2, nil).Error(); got != "exit status 2" {
		t.Errorf("Error() = %q", got)
	}
}
