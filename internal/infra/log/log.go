package log

import (
	"io"
	"os"

	"github.com/Yusufzhafir/illiquid-sim/internal/config"
	"github.com/rs/zerolog"
)

type Logger = zerolog.Logger

func NewLogger(cfg config.LogConfig) Logger {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg config.LogConfig, out io.Writer) Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
