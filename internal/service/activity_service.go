package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lifecycle/internal/events"
	"github.com/spec-kit/ticket-lifecycle/internal/observability"
)

// ActivityService turns published ticket events into log lines and counters.
type ActivityService struct {
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewActivityService creates the service.
func NewActivityService(dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *ActivityService {
	return &ActivityService{
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     loggerOrNop(logger),
	}
}

// RegisterHandlers subscribes to every ticket event.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, eventType := range events.EventTypes {
		a.dispatcher.Subscribe(eventType, a.handleTicketEvent)
	}
}

func (a *ActivityService) handleTicketEvent(_ context.Context, event events.Event) error {
	a.metrics.RecordTicketEvent(string(event.Type))
	a.logger.Info("ticket activity",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("user_id", event.UserID),
		zap.Any("payload", event.Payload))
	return nil
}
