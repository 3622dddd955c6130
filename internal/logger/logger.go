package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the service logger: human readable console output in development,
// JSON lines everywhere else.
func New(environment string, level ...string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl := zerolog.InfoLevel
	if len(level) > 0 {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level[0]))); err == nil && parsed != zerolog.NoLevel {
			lvl = parsed
		}
	}

	var log zerolog.Logger
	switch strings.ToLower(environment) {
	case "development", "dev", "local":
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	default:
		log = zerolog.New(os.Stdout)
	}

	return log.Level(lvl).With().Timestamp().Str("service", "boq-service").Logger()
}
