package services

import (
	"context"

	"fixedspend/internal/amqp"
	"fixedspend/internal/log"
	"fixedspend/internal/session"
)

// SessionEventForwarder returns a listener that publishes sign-in and
// sign-out changes. Token refreshes are not published.
func SessionEventForwarder(events EventPublisher, logger *log.Logger) session.Listener {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSession)

	return func(ctx context.Context, c session.Change) {
		var t amqp.EventType
		switch c.Event {
		case session.EventSignedIn:
			t = amqp.SessionSignedIn
		case session.EventSignedOut:
			t = amqp.SessionSignedOut
		default:
			return
		}
		if err := events.PublishEvent(ctx, amqp.NewSessionEvent(t, c.User.ID, c.User.Email)); err != nil {
			logger.WarnContext(ctx, "Failed to publish session event",
				log.FieldEvent, t,
				log.FieldError, err)
		}
	}
}
