// Package logging builds the root zerolog logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/warden/internal/config"
)

// Event categories used across the core.
const (
	CategoryServer         = "server"
	CategoryDatabase       = "database"
	CategoryHasher         = "hasher"
	CategoryAuthentication = "authentication"
	CategoryAuthorization  = "authorization"
)

// New creates a logger according to cfg. The returned closer releases the
// log file when output is a path; it is a no-op for stdout/stderr.
func New(cfg config.LoggingConfig) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var (
		out    io.Writer
		closer io.Closer = nopCloser{}
	)
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		closer = f
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}

	zerolog.TimeFieldFormat = timeFormat
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()

	return logger, closer, nil
}

// ForCommand adapts cfg for command-line tools. Logs written to stdout move
// to stderr so they do not mix with command output, and verbose forces the
// debug level.
func ForCommand(cfg config.LoggingConfig, verbose bool) config.LoggingConfig {
	if cfg.Output == "" || cfg.Output == "stdout" {
		cfg.Output = "stderr"
	}
	if verbose {
		cfg.Level = zerolog.DebugLevel.String()
	}
	return cfg
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
