package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
)

// AuditService appends and reads the ticket audit trail.
type AuditService struct {
	history repository.TicketHistoryRepository
	logger  *zap.Logger
}

// AuditDetails carries the optional values of a history entry.
type AuditDetails struct {
	PreviousValue *string
	NewValue      *string
	Comment       *string
	Metadata      map[string]string
}

// NewAuditService constructs the service.
func NewAuditService(history repository.TicketHistoryRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{history: history, logger: logger}
}

// RecordTicketAction appends one entry. The store assigns ID and Timestamp.
// Values are stored as given; callers decide what is meaningful.
func (a *AuditService) RecordTicketAction(ctx context.Context, ticketID string, action domain.TicketAction, userID string, details AuditDetails) (*domain.TicketHistory, error) {
	entry := &domain.TicketHistory{
		TicketID:      ticketID,
		UserID:        userID,
		Action:        action,
		PreviousValue: details.PreviousValue,
		NewValue:      details.NewValue,
		Comment:       details.Comment,
		Metadata:      details.Metadata,
	}
	if err := a.history.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}
	a.logger.Debug("ticket action recorded",
		zap.String("ticket_id", ticketID),
		zap.String("action", string(action)),
		zap.String("history_id", entry.ID))
	return entry, nil
}

// History returns the entries for a ticket, newest first.
func (a *AuditService) History(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	entries, err := a.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}
