package utils

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger installs a JSON slog logger as the default. When file is set the
// output is also written to a size-rotated log file.
func InitLogger(level, file string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if src, ok := a.Value.Any().(*slog.Source); ok && src != nil {
					src.File = filepath.Base(src.File)
				}
			}
			return a
		},
	}
	var w io.Writer = os.Stdout
	if file = strings.TrimSpace(file); file != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    50, // megabytes
			MaxAge:     28, // days
			MaxBackups: 5,
			Compress:   true,
		})
	}
	logger := slog.New(slog.NewJSONHandler(w, opts))
	slog.SetDefault(logger)
	return logger
}
