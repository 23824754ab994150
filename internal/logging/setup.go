package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/natefinch/lumberjack"

	"github.com/ironsheep/volume-tools-mcp/internal/config"
)

// Setup builds a *slog.Logger from settings, installs it as slog's default
// and as the global Sink. The returned func closes the log file, if any.
//
// Console logs go to stderr as text since stdout may carry protocol traffic.
// File logs are JSON and rotated by lumberjack.
func Setup(settings config.LoggingSettings) (*slog.Logger, func() error, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(settings.Level)}

	var (
		handler slog.Handler
		closer  io.Closer
	)
	switch settings.Type {
	case config.LogTypeConsole, "":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case config.LogTypeFile:
		if settings.FilePath == "" {
			return nil, nil, fmt.Errorf("file path is required for file logger")
		}
		writer := &lumberjack.Logger{
			Filename:   settings.FilePath,
			MaxSize:    settings.MaxSize,
			MaxBackups: settings.MaxBackups,
			MaxAge:     settings.MaxAge,
			Compress:   true,
		}
		handler = slog.NewJSONHandler(writer, opts)
		closer = writer
	default:
		return nil, nil, fmt.Errorf("unsupported log type: %s", settings.Type)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	SetGlobal(NewSlogSink(logger))

	cleanup := func() error {
		if closer == nil {
			return nil
		}
		return closer.Close()
	}
	return logger, cleanup, nil
}

// ParseLevel maps a configured level name to a slog level. Unknown names
// give Info.
func ParseLevel(level string) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelInfo:
		return slog.LevelInfo
	case config.LogLevelWarning:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
