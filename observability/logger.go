// Package observability provides the logging and metrics plumbing shared by
// the server and the command line tools.
package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the root logger. Verbosity maps to levels: 0 warn,
// 1 info, 2 debug, 3 and above trace. Pretty selects human readable console
// output instead of JSON.
func NewLogger(app string, verbosity int, pretty bool) zerolog.Logger {
	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(out).
		Level(verbosityLevel(verbosity)).
		With().
		Timestamp().
		Str("app", app).
		Logger()

	if verbosity >= 2 {
		logger = logger.With().Caller().Logger()
	}

	return logger
}

func verbosityLevel(verbosity int) zerolog.Level {
	switch verbosity {
	case 0:
		return zerolog.WarnLevel
	case 1:
		return zerolog.InfoLevel
	case 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// Component returns a child logger tagged with a component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
