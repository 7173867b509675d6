// Package logger configures the process-wide zerolog writer and provides
// narrowed, component-scoped loggers.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how the base logger is constructed.
type Config struct {
	// Level is one of: debug, info, warn, error.
	Level string
	// Pretty enables a human-readable console writer instead of JSON.
	Pretty bool
}

// New builds a base zerolog.Logger from cfg. Callers should narrow it per
// component with .With().Str("component", name).Logger() rather than reaching
// for a package-level global.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writer = os.Stderr
	if cfg.Pretty {
		console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		return zerolog.New(console).With().Timestamp().Logger()
	}
	return zerolog.New(writer).With().Timestamp().Logger()
}

// Component narrows base to a single named subsystem, matching the
// "component" field convention used throughout this codebase.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
