package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation error", err: ValidationError("bad flag").Build(), expected: 2},
		{name: "config error", err: ConfigError("bad config").Build(), expected: 7},
		{name: "batch failures", err: BuildError("2 files failed").Build(), expected: 1},
		{name: "transform error", err: TransformError("syntax").Build(), expected: 11},
		{name: "wrapped watch error", err: fmt.Errorf("start: %w", WatchError("no roots").Fatal().Build()), expected: 12},
		{name: "unclassified error", err: errors.New("unknown error"), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	cause := errors.New("open cssbuilder.yaml: permission denied")
	err := WrapError(cause, CategoryConfig, "load config").Build()

	quiet := NewCLIErrorAdapter(false, slog.Default()).FormatError(err)
	if !strings.Contains(quiet, "load config") || strings.Contains(quiet, "permission denied") {
		t.Errorf("unexpected non-verbose message: %q", quiet)
	}

	verbose := NewCLIErrorAdapter(true, slog.Default()).FormatError(err)
	if !strings.Contains(verbose, "permission denied") {
		t.Errorf("expected verbose message to include cause, got %q", verbose)
	}

	if got := NewCLIErrorAdapter(false, nil).FormatError(nil); got != "" {
		t.Errorf("expected empty message for nil error, got %q", got)
	}
}
