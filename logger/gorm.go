package logger

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"
)

type gormWriter struct {
	log zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Info().Msgf(strings.TrimSpace(format), args...)
}

// NewGormLogger routes gorm's SQL log through zerolog.
func NewGormLogger(level string) gormlogger.Interface {
	return gormlogger.New(
		gormWriter{log: WithComponent("gorm")},
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLevel(level),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func gormLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
