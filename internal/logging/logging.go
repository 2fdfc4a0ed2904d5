// Package logging wraps a zerolog.Logger behind the printf-style helpers
// (Debug, Info, Warn, Error, Fatal) the rest of this codebase calls, so
// call sites read like fmt.Printf rather than zerolog's builder chain.
package logging

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	Init("info", "console")
}

// Init (re)configures the package logger from a level name ("debug",
// "info", "warn", "error") and a format ("console" or "json"). Unknown
// levels fall back to info; it runs once with defaults at package init
// and again from bootstrap.SetupLogging once configuration is loaded.
func Init(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var w = os.Stderr
	if strings.ToLower(format) == "json" {
		log = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

func Debug(format string, args ...interface{}) { log.Debug().Msg(fmt.Sprintf(format, args...)) }
func Info(format string, args ...interface{})  { log.Info().Msg(fmt.Sprintf(format, args...)) }
func Warn(format string, args ...interface{})  { log.Warn().Msg(fmt.Sprintf(format, args...)) }
func Error(format string, args ...interface{}) { log.Error().Msg(fmt.Sprintf(format, args...)) }
func Fatal(format string, args ...interface{}) { log.Fatal().Msg(fmt.Sprintf(format, args...)) }

// WithCorrelation returns a logger event pre-tagged with a correlation
// code, for the one place (§7) that must attach a code to a server-error
// log line.
func WithCorrelation(code string) *zerolog.Event {
	return log.Error().Str("correlation_id", code)
}
