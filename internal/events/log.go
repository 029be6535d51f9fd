package events

import (
	"context"

	"github.com/jinkaiteo/edms/internal/model"
	"github.com/sirupsen/logrus"
)

var _ Sink = (*LogSink)(nil)

// LogSink writes one structured line per record.
type LogSink struct {
	logger logrus.FieldLogger
}

func NewLogSink(logger logrus.FieldLogger) *LogSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogSink{logger: logger}
}

func (l *LogSink) Name() string {
	return "log"
}

func (l *LogSink) Deliver(ctx context.Context, record *model.TransitionRecord) error {
	l.logger.WithFields(logrus.Fields{
		"document": record.DocumentID,
		"family":   record.FamilyNumber,
		"version":  record.Version,
		"from":     record.FromStatus,
		"to":       record.ToStatus,
		"actor":    record.Actor,
		"action":   record.Action,
	}).Info("document transition")
	return nil
}

func (l *LogSink) Close() error {
	return nil
}
