package config

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"
)

// SetupLogger configures the global zerolog logger and returns the matching
// gorm log level.
func SetupLogger(level string, json bool) logger.LogLevel {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	if !json {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	switch {
	case lvl <= zerolog.DebugLevel:
		return logger.Info
	case lvl <= zerolog.WarnLevel:
		return logger.Warn
	default:
		return logger.Error
	}
}
