package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds a text logger at the named level. Unknown levels fall
// back to info with a warning on stderr.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl, ok := parseLevel(level)
	if !ok {
		fmt.Fprintf(os.Stderr, "Warning: invalid log level %q, using \"info\"\n", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug,
	}))
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
