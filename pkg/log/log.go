package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Init replaces it; until then it writes
// JSON to stderr.
var Logger = newLogger(os.Stderr, true)

// Level is a log level as spelled in the config file.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config selects the level, encoding and destination of Logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// ParseLevel maps a config level onto zerolog. Anything outside
// debug, info, warn and error falls back to info.
func ParseLevel(l Level) zerolog.Level {
	switch l {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		lvl, err := zerolog.ParseLevel(string(l))
		if err == nil {
			return lvl
		}
	}
	return zerolog.InfoLevel
}

// Init sets the global level and rebuilds Logger from cfg.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	Logger = newLogger(out, cfg.JSONOutput)
}

func newLogger(out io.Writer, json bool) zerolog.Logger {
	if !json {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// WithComponent returns a child of Logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithSlot returns a child of Logger tagged with component and one slot key.
func WithSlot(component, date, timeSlot string) zerolog.Logger {
	return Logger.With().
		Str("component", component).
		Str("date", date).
		Str("time_slot", timeSlot).
		Logger()
}
