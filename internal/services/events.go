package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jobnest/apiserver/types"
)

// EventPublisher delivers job board events to a message broker.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event types.Event) error
}

// notifier publishes events after a committed change. A nil publisher
// disables publishing; failures are logged and never fail the request.
type notifier struct {
	publisher EventPublisher
	logger    *slog.Logger
}

func (n notifier) notify(ctx context.Context, event types.Event) {
	if n.publisher == nil {
		return
	}
	event.ID = uuid.NewString()
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := n.publisher.PublishEvent(ctx, event); err != nil {
		n.logger.WarnContext(ctx, "publish event failed",
			slog.String("type", string(event.Type)),
			slog.String("job_id", event.JobID),
			slog.Any("error", err),
		)
	}
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
