// Package logging builds the structured loggers used by Orbitals and the CLI.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

var ErrUnknownLevel = errors.New("logging: unknown level")

// Verbosity levels accepted in numeric form, 1 (critical) to 7 (everything).
const (
	VerbosityCritical = 1
	VerbosityError    = 2
	VerbosityInfo     = 3
	VerbosityVerbose  = 4
	VerbosityAll      = 7
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options selects the handler. Zero value is info level text output.
type Options struct {
	Level  string
	Format string
	// AddSource records the calling file and line.
	AddSource bool
}

// ParseLevel accepts debug|info|warn|error or a numeric verbosity.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug", "trace":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < VerbosityCritical || n > VerbosityAll {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
	switch {
	case n >= VerbosityVerbose:
		return slog.LevelDebug, nil
	case n >= VerbosityInfo:
		return slog.LevelInfo, nil
	case n >= VerbosityError:
		return slog.LevelWarn, nil
	}
	return slog.LevelError, nil
}

// New returns a text logger writing to w at the given level.
func New(level string, w io.Writer) (*slog.Logger, error) {
	return NewWithOptions(Options{Level: level}, w)
}

func NewWithOptions(opts Options, w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	ho := &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}
	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		return slog.New(slog.NewTextHandler(w, ho)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, ho)), nil
	}
	return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
