package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/benchlink-core/internal/infrastructure/config"
)

// ServiceName is attached to every log entry.
const ServiceName = "benchlink"

// Redacted replaces the value of any attribute whose key names a secret.
const Redacted = "[redacted]"

// secretKeys are matched against the last segment of an attribute key, so
// both "password" and a grouped "mqtt.password" are caught.
var secretKeys = map[string]bool{
	"password":   true,
	"token":      true,
	"secret":     true,
	"jwt_secret": true,
}

// Logger wraps slog.Logger with the BenchLink default fields.
//
// Its Debug/Info/Warn/Error methods satisfy the small Logger interfaces
// the domain packages declare, so one *Logger can be handed to all of them.
// Loggers derived with With or Component share their parent's level, so
// SetLevel on the root adjusts every subsystem at once.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// New creates a Logger writing to the configured output.
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Application version for the default field
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		output = os.Stderr
	}
	return NewWithWriter(output, cfg, version)
}

// NewWithWriter creates a Logger writing to w; cfg.Output is ignored.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Level))
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: redact}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler), level: level}
}

// Default creates a logger for use before configuration is loaded:
// JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, "dev")
}

// With returns a child logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level}
}

// Component is shorthand for With("component", name).
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// SetLevel changes the minimum level of l and every logger derived from
// it. It reports false, leaving the level unchanged, for an unknown name.
func (l *Logger) SetLevel(name string) bool {
	lvl, ok := lookupLevel(name)
	if ok {
		l.level.Set(lvl)
	}
	return ok
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// parseLevel converts a configured level name; unknown names mean info.
func parseLevel(name string) slog.Level {
	lvl, _ := lookupLevel(name)
	return lvl
}

func lookupLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	if secretKeys[key] {
		return slog.String(a.Key, Redacted)
	}
	return a
}
