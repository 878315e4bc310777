package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const appName = "chapterdesk"

// LoggerConfig describes the file log. The terminal belongs to the UI, so
// there is no console logger.
type LoggerConfig struct {
	Level       string `yaml:"level" validate:"required,oneof=none debug normal"`
	Destination string `yaml:"destination,omitempty" validate:"omitempty,filepath"`
	Mode        string `yaml:"mode,omitempty" validate:"omitempty,oneof=append overwrite"`
}

// Prepare returns the program logger and a function that flushes and closes
// the log file.
func (conf *LoggerConfig) Prepare() (*zap.Logger, func() error, error) {
	var level zapcore.Level
	switch conf.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "normal":
		level = zapcore.InfoLevel
	default:
		return zap.NewNop(), func() error { return nil }, nil
	}

	opener := func(fname, mode string) (*os.File, error) {
		flags := os.O_CREATE | os.O_WRONLY
		if mode == "append" {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		if err := os.MkdirAll(filepath.Dir(fname), 0o755); err != nil {
			return nil, err
		}
		return os.OpenFile(fname, flags, 0o644)
	}

	destination := conf.Destination
	if destination == "" {
		destination = filepath.Join(os.TempDir(), appName+".log")
	}
	var redirected string
	f, err := opener(destination, conf.Mode)
	if err != nil {
		if f, err = os.CreateTemp("", appName+".*.log"); err != nil {
			return nil, nil, fmt.Errorf("unable to access file log destination (%s): %w", destination, err)
		}
		redirected = f.Name()
	}

	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.Lock(f), zap.NewAtomicLevelAt(level))
	logger := zap.New(core, zap.AddCaller()).Named(appName)
	if redirected != "" {
		logger.Warn("Log file was redirected to new location", zap.String("location", redirected))
	}
	closer := func() error {
		return multierr.Combine(ignoreSyncErr(logger.Sync()), f.Close())
	}
	return logger, closer, nil
}

// ignoreSyncErr drops the error Sync reports for files that do not support
// fsync (pipes, /dev/null).
func ignoreSyncErr(err error) error {
	if err == nil {
		return nil
	}
	if pathErr, ok := err.(*os.PathError); ok && pathErr.Op == "sync" {
		return nil
	}
	return err
}
