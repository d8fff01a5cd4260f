// Package logging builds the process logger. Console output is always
// on at the configured level; debug mode adds a JSON file sink under
// the data dir so operators can audit registry and sandbox activity
// after the fact. Subsystems derive named loggers from the root
// (registry, store, sandbox, gate, adapter).
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"toolforge/internal/config"
)

// Manager owns the root logger and its reloadable console level.
type Manager struct {
	logger       *zap.Logger
	consoleLevel zap.AtomicLevel
	file         *os.File
}

// New builds the logger per config. dataDir is only used when debug
// mode enables the file sink.
func New(cfg config.LoggingConfig, dataDir string) (*Manager, error) {
	m := &Manager{consoleLevel: zap.NewAtomicLevelAt(parseLevel(cfg.Level))}

	consoleEnc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), m.consoleLevel),
	}

	if cfg.DebugMode {
		logsDir := filepath.Join(dataDir, "logs")
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create logs directory: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(logsDir, "toolforge.log"),
			os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		m.file = f

		fileEnc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEnc, zapcore.AddSync(f), zapcore.DebugLevel))
	}

	m.logger = zap.New(zapcore.NewTee(cores...))
	return m, nil
}

// Logger returns the root logger.
func (m *Manager) Logger() *zap.Logger {
	return m.logger
}

// Apply adjusts the console level from a freshly loaded config. The
// file sink cannot be toggled live; it is decided at startup.
func (m *Manager) Apply(cfg config.LoggingConfig) {
	m.consoleLevel.SetLevel(parseLevel(cfg.Level))
}

// Close flushes and releases the file sink.
func (m *Manager) Close() error {
	_ = m.logger.Sync()
	if m.file != nil {
		return m.file.Close()
	}
	return nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}
