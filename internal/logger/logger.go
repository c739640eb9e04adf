package logger

import (
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options describes logger configuration supplied at creation time.
type Options struct {
	Level         string
	HumanReadable bool
	Writer        io.Writer
	// Session is attached to every entry when set.
	Session string
}

// Logger wraps zerolog to provide the construction tooling's logging API.
type Logger struct {
	base zerolog.Logger
}

// New creates a configured Logger instance based on Options.
func New(opts Options) (*Logger, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	var output io.Writer = writer
	if opts.HumanReadable {
		console := zerolog.NewConsoleWriter()
		console.Out = writer
		console.TimeFormat = time.Kitchen
		output = console
	}

	ctx := zerolog.New(output).Level(level).With().Timestamp()
	if opts.Session != "" {
		ctx = ctx.Str("session", opts.Session)
	}
	return &Logger{base: ctx.Logger()}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{base: zerolog.Nop()}
}

// WithFields returns a derived logger that always writes the supplied
// fields. Fields are added in key order so entries render deterministically.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	if l == nil {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	builder := l.base.With()
	for _, key := range keys {
		builder = builder.Interface(key, fields[key])
	}
	return &Logger{base: builder.Logger()}
}

// WithFactor scopes the logger to a single factor.
func (l *Logger) WithFactor(factor string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{base: l.base.With().Str("factor", factor).Logger()}
}

// WithProcess scopes the logger to a spawned instruction.
func (l *Logger) WithProcess(pid int, command string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{base: l.base.With().Int("pid", pid).Str("command", command).Logger()}
}

// Info writes an informational log entry.
func (l *Logger) Info(msg string) { l.write(zerolog.InfoLevel, msg) }

// Debug writes a debug entry when the level allows it.
func (l *Logger) Debug(msg string) { l.write(zerolog.DebugLevel, msg) }

// Warn writes a warning entry.
func (l *Logger) Warn(msg string) { l.write(zerolog.WarnLevel, msg) }

// Error writes an error entry carrying err.
func (l *Logger) Error(err error, msg string) {
	if l == nil {
		return
	}
	event := l.base.Error()
	if err != nil {
		event = event.Err(err)
	}
	event.Msg(msg)
}

func (l *Logger) write(level zerolog.Level, msg string) {
	if l == nil {
		return
	}
	l.base.WithLevel(level).Msg(msg)
}
