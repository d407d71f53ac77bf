package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Options controls the global logger. Nil means "read from viper", so the
// command-line flags and AUTHD_* env vars apply.
type Options struct {
	Level   string
	Format  string // "console" or "json"
	NoColor bool
}

// InitDefault sets up a console logger before flags are parsed, so early
// failures are still readable.
func InitDefault() {
	log.Logger = log.Output(consoleWriter(false)).Level(zerolog.InfoLevel)
}

// Init configures the global logger from the given options.
func Init(opts *Options) {
	if opts == nil {
		opts = &Options{
			Level:   viper.GetString("log.level"),
			Format:  viper.GetString("log.format"),
			NoColor: viper.GetBool("log.no_color"),
		}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if opts.Format != "json" {
		out = consoleWriter(opts.NoColor)
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger().Level(level)
}

func consoleWriter(noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	}
}
