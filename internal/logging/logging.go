// Package logging builds the zerolog loggers used by maskeval.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how log events are written
type Options struct {
	// Level is a zerolog level name: debug, info, warn, error
	Level string

	// Format is "console" for human-readable output or "json"
	Format string

	// File, when set, receives a JSON copy of every event with size-based rotation
	File string

	// Output defaults to os.Stderr
	Output io.Writer
}

// New returns a logger configured from opts
func New(opts Options) (zerolog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var primary io.Writer
	switch strings.ToLower(opts.Format) {
	case "", "console":
		primary = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	case "json":
		primary = out
	default:
		return zerolog.Nop(), errors.Errorf("unknown log format %q", opts.Format)
	}

	writer := primary
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50,
			MaxBackups: 3,
			Compress:   true,
		}
		writer = zerolog.MultiLevelWriter(primary, rotating)
	}

	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

// ParseLevel maps a level name to a zerolog level. The empty string is info.
func ParseLevel(name string) (zerolog.Level, error) {
	if name == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(err, "invalid log level %q", name)
	}
	return level, nil
}
