// Package logger provides the process logger for remotesync.
// Warnings and errors are always written; debug and info messages only when
// verbose mode is enabled via the --verbose flag.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Format selects how log lines are rendered.
type Format string

const (
	// FormatConsole renders human-readable lines.
	FormatConsole Format = "console"
	// FormatJSON renders one JSON object per line.
	FormatJSON Format = "json"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	format            = FormatConsole
	base              = build(os.Stderr, FormatConsole, false)
)

func build(w io.Writer, f Format, v bool) zerolog.Logger {
	if f == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.RFC3339}
	}
	level := zerolog.WarnLevel
	if v {
		level = zerolog.DebugLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func rebuild() {
	base = build(output, format, verbose)
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	rebuild()
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	rebuild()
}

// SetFormat selects console or JSON rendering.
func SetFormat(f Format) {
	mu.Lock()
	defer mu.Unlock()
	if f != FormatJSON {
		f = FormatConsole
	}
	format = f
	rebuild()
}

// L returns the underlying logger for structured fields.
func L() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Debug logs a message at debug level.
func Debug(msg string, args ...any) {
	l := L()
	l.Debug().Msg(fmt.Sprintf(msg, args...))
}

// Info logs a message at info level.
func Info(msg string, args ...any) {
	l := L()
	l.Info().Msg(fmt.Sprintf(msg, args...))
}

// Warn logs a message at warn level.
func Warn(msg string, args ...any) {
	l := L()
	l.Warn().Msg(fmt.Sprintf(msg, args...))
}

// Error logs a message at error level.
func Error(msg string, args ...any) {
	l := L()
	l.Error().Msg(fmt.Sprintf(msg, args...))
}

// Section marks the start of a pipeline stage in verbose output.
func Section(name string) {
	l := L()
	l.Info().Str("section", name).Msg("=== " + name + " ===")
}
