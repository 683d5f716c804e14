package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-swr-cache/swr"
)

var _ swr.Logger = LogrusLogger{}

// LogrusLogger adapts a logrus.Entry to the engine's Logger interface.
type LogrusLogger struct{ E *logrus.Entry }

func (l LogrusLogger) Debug(msg string, f swr.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}
func (l LogrusLogger) Info(msg string, f swr.Fields) { l.E.WithFields(logrus.Fields(f)).Info(msg) }
func (l LogrusLogger) Warn(msg string, f swr.Fields) { l.E.WithFields(logrus.Fields(f)).Warn(msg) }
func (l LogrusLogger) Error(msg string, f swr.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}
