package pty

import (
	"io"

	"github.com/sirupsen/logrus"
)

// discardLogger is shared by every component constructed without a logger.
var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

func loggerOrDiscard(l *logrus.Logger) *logrus.Logger {
	if l == nil {
		return discardLogger
	}
	return l
}
