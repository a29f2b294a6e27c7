// Package logging builds the zerolog loggers used by armctl.
package logging

import (
	"bytes"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level and output of the root logger.
type Config struct {
	Level   string    // "debug", "info", ...; defaults to info
	Output  io.Writer // defaults to os.Stderr
	Console bool      // human readable output instead of JSON
	NoColor bool
}

// New returns a root logger with a timestamp on every entry.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Console {
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    cfg.NoColor,
			TimeFormat: time.TimeOnly,
		}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// WithComponent returns a child logger annotated with the component name.
func WithComponent(log zerolog.Logger, component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// LineWriter forwards complete log lines to a channel, dropping lines when
// the reader falls behind. The TUI drains it into its log box.
type LineWriter struct {
	ch chan string
}

// NewLineWriter creates a writer buffering up to size lines.
func NewLineWriter(size int) *LineWriter {
	return &LineWriter{ch: make(chan string, size)}
}

// Write implements io.Writer. zerolog writes one entry per call.
func (w *LineWriter) Write(p []byte) (int, error) {
	for line := range strings.SplitSeq(string(bytes.TrimRight(p, "\n")), "\n") {
		select {
		case w.ch <- line:
		default:
		}
	}
	return len(p), nil
}

// Lines returns the channel of written lines.
func (w *LineWriter) Lines() <-chan string { return w.ch }
