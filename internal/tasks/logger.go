package tasks

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/sirupsen/logrus"
)

// logrusAdapter plugs logrus into watermill.
type logrusAdapter struct {
	e *logrus.Entry
}

// NewLoggerAdapter returns a watermill logger writing through logrus.
func NewLoggerAdapter(e *logrus.Entry) watermill.LoggerAdapter {
	return logrusAdapter{e: e}
}

func (l logrusAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.e.WithFields(logrus.Fields(fields)).WithError(err).Error(msg)
}

func (l logrusAdapter) Info(msg string, fields watermill.LogFields) {
	l.e.WithFields(logrus.Fields(fields)).Info(msg)
}

func (l logrusAdapter) Debug(msg string, fields watermill.LogFields) {
	l.e.WithFields(logrus.Fields(fields)).Debug(msg)
}

func (l logrusAdapter) Trace(msg string, fields watermill.LogFields) {
	l.e.WithFields(logrus.Fields(fields)).Trace(msg)
}

func (l logrusAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return logrusAdapter{e: l.e.WithFields(logrus.Fields(fields))}
}
