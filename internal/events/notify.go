package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jinkaiteo/edms/internal/model"
	"github.com/sirupsen/logrus"
)

// NotificationHandler reacts to one transition published on the bus.
type NotificationHandler func(ctx context.Context, record *model.TransitionRecord) error

// Consume hands every record read from messages to handle until the
// subscription closes. Undecodable messages are acked and dropped; handler
// errors nack.
func Consume(messages <-chan *message.Message, handle NotificationHandler) {
	for msg := range messages {
		var record model.TransitionRecord
		if err := json.Unmarshal(msg.Payload, &record); err != nil {
			logrus.WithField("message", msg.UUID).WithError(err).Error("undecodable notification")
			msg.Ack()
			continue
		}

		if err := handle(msg.Context(), &record); err != nil {
			logrus.WithField("message", msg.UUID).WithError(err).Warn("notification handler failed")
			msg.Nack()
			continue
		}
		msg.Ack()
	}
}

// LogNotification logs who has to act next on a document.
func LogNotification(_ context.Context, record *model.TransitionRecord) error {
	entry := logrus.WithFields(logrus.Fields{
		"document": record.DocumentID,
		"family":   record.FamilyNumber,
		"version":  record.Version,
		"action":   record.Action,
		"status":   record.ToStatus,
	})

	switch record.ToStatus {
	case model.StatusPendingReview:
		entry.Info("review requested")
	case model.StatusPendingApproval:
		entry.Info("approval requested")
	case model.StatusDraft:
		entry.Info("document returned to author")
	default:
		entry.Debug("document status changed")
	}
	return nil
}
