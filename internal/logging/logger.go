package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New constructs a zerolog logger from environment settings.
// LOG_LEVEL selects the minimum level (default info) and LOG_FORMAT=console
// switches from JSON to human-readable output. All timestamps are RFC3339.
func New(env string) zerolog.Logger {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))); err == nil && parsed != zerolog.NoLevel {
		level = parsed
	}

	output := io.Writer(os.Stdout)
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "console") {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("app", "mining-rental").
		Str("env", env).
		Logger()
}
