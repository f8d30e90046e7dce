package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/Combine-Capital/cqo/pkg/config"
	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger behind the interface the orchestrator, the
// launchers, and the monitor server share. Derived loggers (WithService,
// WithRun, ...) are cheap copies; the zero value is not usable, construct
// with New or Nop.
type Logger struct {
	zlog zerolog.Logger
	cfg  config.LogConfig
}

// New builds a Logger from cfg: level, format (json or console), and output
// destination (stdout or stderr). Unknown values fall back to info, json,
// stdout.
func New(cfg config.LogConfig) *Logger {
	w := outputWriter(cfg.Output)

	var zlog zerolog.Logger
	if strings.EqualFold(cfg.Format, "console") {
		zlog = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	} else {
		zlog = zerolog.New(w)
	}

	zlog = zlog.With().Timestamp().Logger().Level(parseLogLevel(cfg.Level))

	return &Logger{zlog: zlog, cfg: cfg}
}

// Nop returns a logger that discards all events. It is the default for
// orchestrators constructed without WithLogger and keeps tests quiet.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

func defaultLogConfig() config.LogConfig {
	return config.LogConfig{Level: "info", Format: "json", Output: "stdout"}
}

func outputWriter(name string) io.Writer {
	if strings.EqualFold(name, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Warn returns a warning level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Fatal returns a fatal level event; the process exits after it is written.
func (l *Logger) Fatal() *zerolog.Event {
	return l.zlog.Fatal()
}

// Panic returns a panic level event; the caller panics after it is written.
func (l *Logger) Panic() *zerolog.Event {
	return l.zlog.Panic()
}

// With returns a zerolog context for attaching ad-hoc fields.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// WithComponent returns a logger tagged with the emitting component
// (orchestrator, launcher, probe, monitor).
func (l *Logger) WithComponent(component string) *Logger {
	return l.child(l.zlog.With().Str(Component, component))
}

// WithService returns a logger scoped to one orchestrated service.
func (l *Logger) WithService(service string) *Logger {
	return l.child(l.zlog.With().Str(Service, service))
}

// WithRun returns a logger scoped to one orchestration run.
func (l *Logger) WithRun(runID string) *Logger {
	return l.child(l.zlog.With().Str(RunID, runID))
}

// WithFields returns a logger with every entry of fields attached.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	zctx := l.zlog.With()
	for k, v := range fields {
		zctx = zctx.Interface(k, v)
	}
	return l.child(zctx)
}

func (l *Logger) child(zctx zerolog.Context) *Logger {
	return &Logger{zlog: zctx.Logger(), cfg: l.cfg}
}

// GetZerolog exposes the underlying zerolog.Logger for callers that need
// zerolog-native APIs.
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// Level reports the current log level.
func (l *Logger) Level() zerolog.Level {
	return l.zlog.GetLevel()
}

// SetLevel changes the log level in place.
func (l *Logger) SetLevel(level zerolog.Level) {
	l.zlog = l.zlog.Level(level)
}
