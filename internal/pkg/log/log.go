package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds a slog.Logger. output selects the destination, one of
// "stderr", "stdout" or "file"; when output is "file", filename must point to
// the log file to create or append to. format is "json" or "text". level is
// the minimum level to emit. The returned cleanup function closes the log
// file, if any, and is safe to call unconditionally.
func NewLogger(output, format, filename, level string) (*slog.Logger, func(), error) {
	var w io.Writer
	var closer io.Closer
	switch strings.ToLower(output) {
	case "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	case "file":
		if filename == "" {
			return nil, nil, fmt.Errorf("unable to create log file which name is null(\"\")")
		}
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to create log file(%s): %w", filename, err)
		}
		w = f
		closer = f
	default:
		return nil, nil, fmt.Errorf("unsupported log output: %s", output)
	}

	ho := &slog.HandlerOptions{
		AddSource: true,
	}
	switch strings.ToLower(level) {
	case "debug":
		ho.Level = slog.LevelDebug
	case "info":
		ho.Level = slog.LevelInfo
	case "warn":
		ho.Level = slog.LevelWarn
	case "error":
		ho.Level = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("unsupported log level: %s", level)
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, ho)
	case "text":
		handler = slog.NewTextHandler(w, ho)
	default:
		return nil, nil, fmt.Errorf("unsupported log format: %s", format)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	cleanup := func() {
		if closer != nil {
			_ = closer.Close()
		}
	}
	return logger, cleanup, nil
}
