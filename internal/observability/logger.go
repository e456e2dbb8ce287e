package observability

import (
	"log/slog"
	"os"
	"strings"

	"github.com/duskmoth/hazard-profile-etl/internal/config"
)

// NewLogger builds the pipeline logger from LOG_LEVEL and LOG_FORMAT. Logs
// go to stderr so stdout stays free for report output.
func NewLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
