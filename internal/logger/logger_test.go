package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/satriahrh/supermom/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		level   zapcore.Level
		wantErr bool
	}{
		{"json info", config.LoggingConfig{Level: "info", Format: "json"}, zapcore.InfoLevel, false},
		{"console debug", config.LoggingConfig{Level: "DEBUG", Format: "console"}, zapcore.DebugLevel, false},
		{"bad level", config.LoggingConfig{Level: "loud", Format: "json"}, 0, true},
		{"bad format", config.LoggingConfig{Level: "info", Format: "xml"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if !logger.Core().Enabled(tt.level) {
				t.Errorf("Expected level %s enabled", tt.level)
			}
			if tt.level > zapcore.DebugLevel && logger.Core().Enabled(tt.level-1) {
				t.Errorf("Expected level %s disabled", tt.level-1)
			}
		})
	}
}
