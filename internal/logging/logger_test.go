package logging

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"

	"toolforge/internal/config"
)

func TestNewConsoleOnly(t *testing.T) {
	m, err := New(config.LoggingConfig{Level: "info"}, t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer m.Close()

	if m.Logger() == nil {
		t.Fatal("Logger is nil")
	}
	if m.file != nil {
		t.Error("File sink opened without debug mode")
	}
	if !m.consoleLevel.Enabled(zapcore.InfoLevel) {
		t.Error("Info level not enabled")
	}
	if m.consoleLevel.Enabled(zapcore.DebugLevel) {
		t.Error("Debug level enabled at info")
	}
}

func TestNewDebugModeOpensFileSink(t *testing.T) {
	dataDir := t.TempDir()
	m, err := New(config.LoggingConfig{DebugMode: true, Level: "debug"}, dataDir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	m.Logger().Debug("hello from the test")
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	logPath := filepath.Join(dataDir, "logs", "toolforge.log")
	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Log file missing: %v", err)
	}
	if len(raw) == 0 {
		t.Error("Log file empty")
	}
}

func TestApplyReloadsConsoleLevel(t *testing.T) {
	m, err := New(config.LoggingConfig{Level: "warn"}, t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer m.Close()

	if m.consoleLevel.Enabled(zapcore.InfoLevel) {
		t.Fatal("Info enabled at warn")
	}
	m.Apply(config.LoggingConfig{Level: "debug"})
	if !m.consoleLevel.Enabled(zapcore.DebugLevel) {
		t.Error("Apply did not lower the level")
	}
}

func TestParseLevelDefaultsToWarn(t *testing.T) {
	if parseLevel("nonsense") != zapcore.WarnLevel {
		t.Error("Unknown level should fall back to warn")
	}
	if parseLevel("error") != zapcore.ErrorLevel {
		t.Error("error level not parsed")
	}
}
