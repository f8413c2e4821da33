package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	testCases := []struct {
		name  string
		env   string
		level string
		want  zapcore.Level
	}{
		{"production info", "production", "info", zapcore.InfoLevel},
		{"development debug", "development", "debug", zapcore.DebugLevel},
		{"unknown level falls back", "development", "loud", zapcore.InfoLevel},
		{"warn", "production", "warn", zapcore.WarnLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			log, err := New(tc.env, tc.level)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if !log.Core().Enabled(tc.want) {
				t.Errorf("level %v should be enabled", tc.want)
			}
			if tc.want > zapcore.DebugLevel && log.Core().Enabled(tc.want-1) {
				t.Errorf("level %v should be disabled", tc.want-1)
			}
		})
	}
}
