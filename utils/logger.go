package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2/log"
)

// ParseLevel maps a LOG_LEVEL value to a fiber log level
func ParseLevel(level string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "", "info":
		return log.LevelInfo, nil
	case "warn", "warning":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	default:
		return log.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// SetupLogger configures the default fiber logger. When file is set, output
// goes to stderr and is appended to the file; the returned closer closes it.
func SetupLogger(level, file string) (io.Closer, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(lvl)

	if file == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return f, nil
}
