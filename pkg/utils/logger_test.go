package utils

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	t.Run("debug mode returns development logger", func(t *testing.T) {
		logger, err := NewLogger(true)
		if err != nil {
			t.Fatalf("NewLogger(true) error: %v", err)
		}
		if !logger.Core().Enabled(zap.DebugLevel) {
			t.Error("debug logger should enable debug level")
		}
		_ = logger.Sync()
	})

	t.Run("production mode logs at info", func(t *testing.T) {
		logger, err := NewLogger(false)
		if err != nil {
			t.Fatalf("NewLogger(false) error: %v", err)
		}
		if logger.Core().Enabled(zap.DebugLevel) {
			t.Error("production logger should not enable debug level")
		}
		if !logger.Core().Enabled(zap.InfoLevel) {
			t.Error("production logger should enable info level")
		}
		_ = logger.Sync()
	})
}

func TestNewCommandLogger(t *testing.T) {
	tests := []struct {
		debug   bool
		infoOn  bool
		warnOn  bool
		debugOn bool
	}{
		{debug: false, infoOn: false, warnOn: true, debugOn: false},
		{debug: true, infoOn: true, warnOn: true, debugOn: true},
	}
	for _, tt := range tests {
		logger, err := NewCommandLogger(tt.debug)
		if err != nil {
			t.Fatalf("NewCommandLogger(%v) error: %v", tt.debug, err)
		}
		core := logger.Core()
		if core.Enabled(zap.InfoLevel) != tt.infoOn || core.Enabled(zap.WarnLevel) != tt.warnOn || core.Enabled(zap.DebugLevel) != tt.debugOn {
			t.Errorf("NewCommandLogger(%v): unexpected levels", tt.debug)
		}
	}
}
