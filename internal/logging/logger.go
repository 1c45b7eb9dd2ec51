// Package logging provides structured logging for the CLI and interactive shell.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rescale/twinpane/internal/events"
)

// Logger wraps zerolog with mode-specific behavior.
type Logger struct {
	zlog      zerolog.Logger
	mode      string // "cli", "shell" or "nop"
	component string
	eventBus  *events.EventBus
	console   io.Writer
	file      *lumberjack.Logger
	output    io.Writer // current output writer
}

// NewLogger creates a new logger for the specified mode.
// Console output goes to stderr so listings on stdout stay pipeable.
// When eventBus is non-nil, warnings and errors are mirrored to it as LogEvents.
func NewLogger(mode string, eventBus *events.EventBus) *Logger {
	l := &Logger{
		mode:     mode,
		eventBus: eventBus,
		console: zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		},
	}
	l.rebuild()
	return l
}

// NewDefaultCLILogger creates a default CLI logger.
func NewDefaultCLILogger() *Logger {
	return NewLogger("cli", nil)
}

// NewNopLogger returns a logger that discards everything. Used as the
// default for library components constructed without a logger.
func NewNopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop(), mode: "nop", output: io.Discard}
}

func (l *Logger) rebuild() {
	if l.mode == "nop" {
		return
	}
	var w io.Writer = l.console
	if l.file != nil {
		w = zerolog.MultiLevelWriter(l.console, l.file)
	}
	l.output = w

	ctx := zerolog.New(w).With().Timestamp()
	if l.component != "" {
		ctx = ctx.Str("component", l.component)
	}
	zl := ctx.Logger()
	if l.eventBus != nil {
		zl = zl.Hook(busHook{bus: l.eventBus, component: l.component})
	}
	l.zlog = zl
}

// EnableFileOutput tees log records to a rotating file at path
// (10 MB per file, 5 backups, 30 days, compressed).
func (l *Logger) EnableFileOutput(path string) error {
	if l.mode == "nop" || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	l.file = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	l.rebuild()
	return nil
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Component returns a child logger tagged with component=name.
// The child shares the parent's writers.
func (l *Logger) Component(name string) *Logger {
	if l == nil {
		return NewNopLogger()
	}
	child := *l
	child.component = name
	if child.mode == "nop" {
		return &child
	}
	child.rebuild()
	return &child
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// Fatal returns a fatal level event.
func (l *Logger) Fatal() *zerolog.Event {
	return l.zlog.Fatal()
}

// With creates a child logger with additional context.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// SetOutput replaces the console writer. The file writer, if enabled, is kept.
func (l *Logger) SetOutput(w io.Writer) {
	if l.mode == "nop" {
		return
	}
	l.console = zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}
	l.rebuild()
}

// Output returns the current output writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// Debugf logs a debug message with printf-style formatting.
// This is only shown when debug/verbose mode is enabled.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel maps a config value ("debug", "info", ...) to a zerolog level.
// An empty string means info.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// busHook mirrors warnings and errors onto the event bus.
type busHook struct {
	bus       *events.EventBus
	component string
}

func (h busHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	var lvl events.LogLevel
	switch {
	case level >= zerolog.ErrorLevel:
		lvl = events.ErrorLevel
	case level == zerolog.WarnLevel:
		lvl = events.WarnLevel
	default:
		return
	}
	h.bus.PublishLog(lvl, msg, h.component, nil)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
