package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/pawmatch/pawmatch/internal/interfaces"
	"github.com/pawmatch/pawmatch/internal/telemetry"
)

// Channel is one delivery transport
type Channel interface {
	interfaces.NotificationSink
	Name() string
}

// Dispatcher fans a notification out to every configured channel. A failing
// channel does not stop delivery on the others.
type Dispatcher struct {
	channels []Channel
}

func NewDispatcher(channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels}
}

// Channels returns the names of the configured channels
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, c := range d.channels {
		names = append(names, c.Name())
	}
	return names
}

func (d *Dispatcher) SendMatchNotification(ctx context.Context, userID, title, message string, data map[string]string) error {
	return d.each(ctx, "match", userID, func(c Channel) error {
		return c.SendMatchNotification(ctx, userID, title, message, data)
	})
}

func (d *Dispatcher) SendPlaydateRequestNotification(ctx context.Context, userID, requestID, otherDogName string) error {
	return d.each(ctx, "playdate_request", userID, func(c Channel) error {
		return c.SendPlaydateRequestNotification(ctx, userID, requestID, otherDogName)
	})
}

func (d *Dispatcher) each(ctx context.Context, kind, userID string, send func(Channel) error) error {
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":         "dispatch_notification",
		"notification_type": kind,
		"user_id":           userID,
	})

	if len(d.channels) == 0 {
		logger.Debug("No notification channels configured")
		return nil
	}

	var errs []error
	for _, c := range d.channels {
		if err := send(c); err != nil {
			logger.WithError(err).WithField("channel", c.Name()).Warn("Notification delivery failed")
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}
