package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"  INFO ", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.input); got != tc.want {
			t.Fatalf("parseLevel(%q)=%v want %v", tc.input, got, tc.want)
		}
	}
}

func TestOrNopNil(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("expected non-nil logger for nil input")
	}
}

func TestNewBuilds(t *testing.T) {
	logger, err := New("debug")
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	logger.Debug("probe")
	_ = logger.Sync()
}
