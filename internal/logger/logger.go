package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the application logger: a rotating file in the config
// directory, mirrored to stderr when debug is on.
func New(dir string, debug bool) (*slog.Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	var w io.Writer = &lumberjack.Logger{
		Filename:   filepath.Join(dir, "solidtime.log"),
		MaxSize:    10, // MB
		MaxBackups: 5,
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
		w = io.MultiWriter(w, os.Stderr)
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}
