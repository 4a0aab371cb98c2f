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
		if logger == nil {
			t.Fatal("NewLogger(true) returned nil logger")
		}
		_ = logger.Sync()
	})

	t.Run("production mode returns production logger", func(t *testing.T) {
		logger, err := NewLogger(false)
		if err != nil {
			t.Fatalf("NewLogger(false) error: %v", err)
		}
		if logger == nil {
			t.Fatal("NewLogger(false) returned nil logger")
		}
		_ = logger.Sync()
	})
}

func TestNewStderrLogger(t *testing.T) {
	for _, debug := range []bool{true, false} {
		logger, err := NewStderrLogger(debug)
		if err != nil {
			t.Fatalf("NewStderrLogger(%t) error: %v", debug, err)
		}
		if !logger.Core().Enabled(zap.InfoLevel) {
			t.Errorf("NewStderrLogger(%t): info level should be enabled", debug)
		}
		if logger.Core().Enabled(zap.DebugLevel) != debug {
			t.Errorf("NewStderrLogger(%t): debug enabled = %t", debug, !debug)
		}
	}
}
