package observability

import (
	"testing"

	"go.uber.org/zap"
)

// TestParseLogLevel verifies LOG_LEVEL strings map to the expected zap levels,
// including the info default for unknown values.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zap.AtomicLevel
	}{
		{"DEBUG", zap.NewAtomicLevelAt(zap.DebugLevel)},
		{"debug", zap.NewAtomicLevelAt(zap.DebugLevel)},
		{" warn ", zap.NewAtomicLevelAt(zap.WarnLevel)},
		{"ERROR", zap.NewAtomicLevelAt(zap.ErrorLevel)},
		{"", zap.NewAtomicLevelAt(zap.InfoLevel)},
		{"bogus", zap.NewAtomicLevelAt(zap.InfoLevel)},
	}

	for _, tc := range tests {
		got := parseLogLevel(tc.in)
		if got.Level() != tc.want.Level() {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tc.in, got.Level(), tc.want.Level())
		}
	}
}
