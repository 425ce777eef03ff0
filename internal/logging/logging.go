// Package logging builds the command-line logger: human-readable text on
// stderr, plus an optional size-rotated JSON log file.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Defaults for file rotation.
const (
	DefaultMaxSizeMB = 10
	DefaultMaxFiles  = 5
)

// Options configures New.
type Options struct {
	// Level applies to every handler.
	Level slog.Level
	// Stderr receives the text output. Nil disables it.
	Stderr io.Writer
	// File, if set, receives JSON records.
	File      string
	MaxSizeMB int
	MaxFiles  int
}

// ParseLevel parses debug, info, warn or error, case-insensitively. The
// empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", s)
	}
}

// New returns the logger described by opts and a Close func releasing the
// log file, if any.
func New(opts Options) (*slog.Logger, func() error, error) {
	handlerOpts := &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: replaceAttr,
	}
	var handlers []slog.Handler
	if opts.Stderr != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.Stderr, handlerOpts))
	}

	closeFn := func() error { return nil }
	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = DefaultMaxSizeMB
		}
		maxFiles := opts.MaxFiles
		if maxFiles < 0 {
			maxFiles = DefaultMaxFiles
		}
		f, err := OpenRotatingFile(opts.File, maxSize, maxFiles)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewJSONHandler(f, handlerOpts))
		closeFn = f.Close
	}

	switch len(handlers) {
	case 0:
		return NewNop(), closeFn, nil
	case 1:
		return slog.New(handlers[0]), closeFn, nil
	default:
		return slog.New(slogmulti.Fanout(handlers...)), closeFn, nil
	}
}

// replaceAttr standardizes the error key.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == "error" {
		a.Key = "err"
	}
	return a
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// CloseAll closes every non-nil closer, joining the errors.
func CloseAll(closers ...func() error) error {
	var errs []error
	for _, c := range closers {
		if c != nil {
			errs = append(errs, c())
		}
	}
	return errors.Join(errs...)
}
