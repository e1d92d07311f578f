package config

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// NewLogger creates a configured logger instance writing to w.
func NewLogger(level logrus.Level, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(w)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
