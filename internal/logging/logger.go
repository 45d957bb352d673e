// ABOUTME: Logger wrapper that adapts zerolog to the types.Logger interface
// ABOUTME: Provides compatibility between external logging libraries and internal interfaces

package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/corewave/orchestrator/pkg/types"
)

// Level selects the minimum severity a Logger emits.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ZerologWrapper wraps zerolog.Logger to implement types.Logger
type ZerologWrapper struct {
	logger zerolog.Logger
}

// NewZerologWrapper creates a new logger wrapper
func NewZerologWrapper(logger zerolog.Logger) types.Logger {
	return &ZerologWrapper{logger: logger}
}

// New creates a console-formatted Logger at the given level, writing to output
// (os.Stderr if nil). Intended for interactive CLI use.
func New(level Level, output io.Writer) types.Logger {
	if output == nil {
		output = os.Stderr
	}
	zerolog.SetGlobalLevel(level.zerolog())
	console := zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339, NoColor: os.Getenv("NO_COLOR") != ""}
	return NewZerologWrapper(zerolog.New(console).With().Timestamp().Logger())
}

// NewJSON creates a JSON-formatted Logger at the given level. Intended for server/daemon use.
func NewJSON(level Level, output io.Writer) types.Logger {
	if output == nil {
		output = os.Stderr
	}
	zerolog.SetGlobalLevel(level.zerolog())
	return NewZerologWrapper(zerolog.New(output).With().Timestamp().Logger())
}

// WithTask returns a child logger scoped to one task's execution.
func WithTask(base types.Logger, taskID, taskRef string) types.Logger {
	return base.With().Str("taskId", taskID).Str("taskRef", taskRef).Logger()
}

// WithRun returns a child logger scoped to one workflow run.
func WithRun(base types.Logger, workflowName, executionID string) types.Logger {
	return base.With().Str("workflow", workflowName).Str("executionId", executionID).Logger()
}

// Debug implements types.Logger
func (z *ZerologWrapper) Debug() types.LogEvent {
	return &ZerologEvent{event: z.logger.Debug()}
}

// Info implements types.Logger
func (z *ZerologWrapper) Info() types.LogEvent {
	return &ZerologEvent{event: z.logger.Info()}
}

// Warn implements types.Logger
func (z *ZerologWrapper) Warn() types.LogEvent {
	return &ZerologEvent{event: z.logger.Warn()}
}

// Error implements types.Logger
func (z *ZerologWrapper) Error() types.LogEvent {
	return &ZerologEvent{event: z.logger.Error()}
}

// With implements types.Logger
func (z *ZerologWrapper) With() types.LogContext {
	return &ZerologContext{context: z.logger.With()}
}

// ZerologEvent wraps zerolog.Event to implement types.LogEvent
type ZerologEvent struct {
	event *zerolog.Event
}

// Str implements types.LogEvent
func (e *ZerologEvent) Str(key, val string) types.LogEvent {
	return &ZerologEvent{event: e.event.Str(key, val)}
}

// Int implements types.LogEvent
func (e *ZerologEvent) Int(key string, val int) types.LogEvent {
	return &ZerologEvent{event: e.event.Int(key, val)}
}

// Dur implements types.LogEvent
func (e *ZerologEvent) Dur(key string, val time.Duration) types.LogEvent {
	return &ZerologEvent{event: e.event.Dur(key, val)}
}

// Err implements types.LogEvent
func (e *ZerologEvent) Err(err error) types.LogEvent {
	return &ZerologEvent{event: e.event.Err(err)}
}

// Any implements types.LogEvent
func (e *ZerologEvent) Any(key string, val interface{}) types.LogEvent {
	return &ZerologEvent{event: e.event.Interface(key, val)}
}

// Bool implements types.LogEvent
func (e *ZerologEvent) Bool(key string, val bool) types.LogEvent {
	return &ZerologEvent{event: e.event.Bool(key, val)}
}

// Msg implements types.LogEvent
func (e *ZerologEvent) Msg(msg string) {
	e.event.Msg(msg)
}

// Msgf implements types.LogEvent
func (e *ZerologEvent) Msgf(format string, args ...interface{}) {
	e.event.Msgf(format, args...)
}

// ZerologContext wraps zerolog.Context to implement types.LogContext
type ZerologContext struct {
	context zerolog.Context
}

// Str implements types.LogContext
func (c *ZerologContext) Str(key, val string) types.LogContext {
	return &ZerologContext{context: c.context.Str(key, val)}
}

// Int adds an integer field to the context; it is not part of the types.LogContext interface.
func (c *ZerologContext) Int(key string, val int) types.LogContext {
	return &ZerologContext{context: c.context.Int(key, val)}
}

// Logger implements types.LogContext
func (c *ZerologContext) Logger() types.Logger {
	return &ZerologWrapper{logger: c.context.Logger()}
}
