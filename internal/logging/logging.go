// Package logging builds the process-wide zerolog logger. Grounded on
// the teacher's pack-mate skywalker-88-stormgate, whose
// cmd/protector/main.go configures a console writer and a LOG_LEVEL
// env var the same way every service in that repo does it.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console-formatted logger at the given level name
// ("debug", "info", "warn", "error"; anything else falls back to
// info). Pass pretty=false to emit newline-delimited JSON instead, for
// production deployments that ship logs to a collector.
func New(level string, pretty bool) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(level))

	if !pretty {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
