// Package logger configures zerolog for the mbedtools commands.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var globalLogger zerolog.Logger

type Config struct {
	Level     string `json:"level" yaml:"level"`
	Debug     bool   `json:"debug" yaml:"debug"`
	Output    string `json:"output" yaml:"output"`
	Verbosity int    `json:"-" yaml:"-"`
	NoColor   bool   `json:"no_color" yaml:"no_color"`
}

func init() {
	globalLogger = newLogger(os.Stderr, zerolog.WarnLevel, false)
}

func newLogger(w io.Writer, level zerolog.Level, noColor bool) zerolog.Logger {
	console := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	}

	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}

// Init replaces the global logger. Verbosity, when non-zero, wins over Level.
func Init(config Config) error {
	var output io.Writer = os.Stderr

	if config.Output == "stdout" {
		output = os.Stdout
	}

	level := zerolog.WarnLevel

	switch {
	case config.Debug:
		level = zerolog.DebugLevel
	case config.Verbosity > 0:
		level = LevelForVerbosity(config.Verbosity)
	case config.Level != "":
		var err error

		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return err
		}
	}

	globalLogger = newLogger(output, level, config.NoColor)
	log.Logger = globalLogger

	return nil
}

// LevelForVerbosity maps the count of -v flags to a log level.
func LevelForVerbosity(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.WarnLevel
	case verbosity == 1:
		return zerolog.InfoLevel
	case verbosity == 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

func GetLogger() zerolog.Logger {
	return globalLogger
}

func WithComponent(component string) zerolog.Logger {
	return globalLogger.With().Str("component", component).Logger()
}

// NewTestLogger returns a logger that discards everything.
func NewTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}
