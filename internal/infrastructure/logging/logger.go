package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/sqlgate/internal/infrastructure/config"
)

const serviceName = "sqlgate"

// Logger is a slog.Logger carrying the service and version fields.
// It is safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger for cfg, writing to stderr when cfg.Output says so
// and to stdout otherwise.
//
// Parameters:
//   - cfg: logging section of config.yaml
//   - version: build version, attached to every entry
//
// Returns:
//   - *Logger: ready to use
func New(cfg config.LoggingConfig, version string) *Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}
	return NewWithWriter(cfg, version, out)
}

// NewWithWriter is New with an explicit destination; cfg.Output is ignored.
// The stdio tool server logs through it to keep stdout for the protocol.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}

	return &Logger{Logger: slog.New(h).With(
		slog.String("service", serviceName),
		slog.String("version", version),
	)}
}

// parseLevel accepts slog's level names in any case plus "warning".
// Anything else is info.
func parseLevel(s string) slog.Level {
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// With returns a child Logger that adds args to every entry.
//
//	dbLog := log.With("component", "database")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the pre-config logger: JSON at info level on stdout.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, "dev")
}

// Discard drops everything. Intended for tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}
