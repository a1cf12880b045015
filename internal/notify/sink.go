// Package notify delivers operator notifications to logs, webhooks and MQTT.
package notify

import (
	"context"
	"errors"

	"github.com/go-hive/hivewatch/internal/logging"
	"github.com/go-hive/hivewatch/internal/notify/model"
)

// Sink receives notifications. Implementations must not block for long.
type Sink interface {
	Notify(ctx context.Context, n model.Notification) error
}

type SinkFunc func(ctx context.Context, n model.Notification) error

func (f SinkFunc) Notify(ctx context.Context, n model.Notification) error {
	return f(ctx, n)
}

// Multi delivers to every sink and joins their errors.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes notifications to the context logger.
type Log struct{}

func (Log) Notify(ctx context.Context, n model.Notification) error {
	logger := logging.FromContext(ctx).With("entity", n.EntityID, "notification", n.ID.String())
	switch n.Severity {
	case model.SeverityError:
		logger.Error(n.Message)
	case model.SeverityWarning:
		logger.Warn(n.Message)
	default:
		logger.Info(n.Message)
	}
	return nil
}
