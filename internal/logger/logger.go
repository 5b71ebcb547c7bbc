package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ainoa/noc-console/internal/config"
)

// Init configures the global zerolog logger. When lcfg.File is set, output
// goes to that file and the returned closer must be closed on exit.
func Init(lcfg config.LoggingConfig) (io.Closer, error) {
	zerolog.SetGlobalLevel(parseLevel(lcfg.Level))

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if lcfg.File != "" {
		f, err := os.OpenFile(lcfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}

	log.Logger = New(out, lcfg.Format)
	return closer, nil
}

// New builds a logger writing to out in the given format.
func New(out io.Writer, format string) zerolog.Logger {
	if strings.ToLower(format) == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: out != os.Stderr}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
