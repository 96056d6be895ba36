package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/events"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
	apperrors "github.com/spec-kit/ticket-lifecycle/pkg/util/errorutil"
)

// DefaultCategory is used when a ticket is created without a category.
const DefaultCategory = "general"

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	audit      *AuditService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Audit      *AuditService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
		logger:     loggerOrNop(deps.Logger),
		now:        clockOrUTC(deps.Clock),
	}
}

// CreateTicket validates the input and stores a NEW ticket. The creation is
// recorded with the customer as actor.
func (s *TicketService) CreateTicket(ctx context.Context, input domain.TicketInput) (*domain.Ticket, error) {
	if result := domain.ValidateTicketCreation(input); !result.IsValid {
		return nil, apperrors.NewValidationError(result.Errors...)
	}

	ticket := &domain.Ticket{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusNew,
		Priority:    input.Priority,
		Category:    strings.TrimSpace(input.Category),
		CustomerID:  strings.TrimSpace(input.CustomerID),
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if ticket.Category == "" {
		ticket.Category = DefaultCategory
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	_, err := recordAction(ctx, s.audit, s.logger, ticket.ID, domain.ActionCreated, ticket.CustomerID, AuditDetails{
		NewValue: stringPtr(string(domain.TicketStatusNew)),
		Metadata: map[string]string{
			"title":    ticket.Title,
			"priority": string(ticket.Priority),
		},
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		UserID:   ticket.CustomerID,
		Payload: events.TicketCreatedPayload{
			CustomerID: ticket.CustomerID,
			Category:   ticket.Category,
			Priority:   ticket.Priority,
			Title:      ticket.Title,
		},
	})
	return ticket, nil
}

// UpdateStatus moves a ticket along the transition table.
func (s *TicketService) UpdateStatus(ctx context.Context, ticketID string, next domain.TicketStatus, userID, comment string) (*domain.Ticket, error) {
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}

	var commentPtr *string
	if strings.TrimSpace(comment) != "" {
		if result := domain.ValidateComment(comment); !result.IsValid {
			return nil, apperrors.NewValidationError(result.Errors...)
		}
		commentPtr = stringPtr(strings.TrimSpace(comment))
	}

	if !domain.ValidateStatusTransition(ticket.Status, next) {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(next))
	}

	previous := ticket.Status
	ticket.ApplyStatus(next, s.now())
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, storeError("update ticket status", ticketID, err)
	}

	_, err = recordAction(ctx, s.audit, s.logger, ticket.ID, domain.ActionStatusChanged, userID, AuditDetails{
		PreviousValue: stringPtr(string(previous)),
		NewValue:      stringPtr(string(next)),
		Comment:       commentPtr,
	})
	if err != nil {
		return nil, err
	}

	payload := events.TicketStatusChangedPayload{OldStatus: previous, NewStatus: next}
	if commentPtr != nil {
		payload.Comment = *commentPtr
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		UserID:   userID,
		Payload:  payload,
	})
	return ticket, nil
}

// UpdatePriority changes the priority of an open ticket.
func (s *TicketService) UpdatePriority(ctx context.Context, ticketID string, next domain.TicketPriority, userID string) (*domain.Ticket, error) {
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if result := domain.ValidatePriorityChange(ticket, next); !result.IsValid {
		return nil, apperrors.NewValidationError(result.Errors...)
	}

	previous := ticket.Priority
	ticket.Priority = next
	ticket.Touch(s.now())
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, storeError("update ticket priority", ticketID, err)
	}

	_, err = recordAction(ctx, s.audit, s.logger, ticket.ID, domain.ActionPriorityChanged, userID, AuditDetails{
		PreviousValue: stringPtr(string(previous)),
		NewValue:      stringPtr(string(next)),
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketPriorityChanged,
		TicketID: ticket.ID,
		UserID:   userID,
		Payload: events.TicketPriorityChangedPayload{
			OldPriority: previous,
			NewPriority: next,
		},
	})
	return ticket, nil
}

// AddComment records a comment on the ticket without mutating it.
func (s *TicketService) AddComment(ctx context.Context, ticketID, userID, comment string) (*domain.TicketHistory, error) {
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if result := domain.ValidateComment(comment); !result.IsValid {
		return nil, apperrors.NewValidationError(result.Errors...)
	}

	body := strings.TrimSpace(comment)
	entry, err := recordAction(ctx, s.audit, s.logger, ticket.ID, domain.ActionCommentAdded, userID, AuditDetails{
		Comment: &body,
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: ticket.ID,
		UserID:   userID,
		Payload: events.TicketCommentAddedPayload{
			HistoryID:   entry.ID,
			BodyPreview: stringPreview(body, 120),
		},
	})
	return entry, nil
}

// FindTicket returns the ticket and whether it exists.
func (s *TicketService) FindTicket(ctx context.Context, ticketID string) (*domain.Ticket, bool, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get ticket: %w", err)
	}
	return ticket, true, nil
}

// GetTicket is FindTicket with absence reported as a not-found error.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return loadTicket(ctx, s.tickets, ticketID)
}

// ListTickets returns one page of the filtered tickets, newest first.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) (repository.Page, error) {
	page, err := s.tickets.List(ctx, filter.Normalize())
	if err != nil {
		return repository.Page{}, fmt.Errorf("list tickets: %w", err)
	}
	return page, nil
}

// ListByCustomer returns every ticket opened by the customer.
func (s *TicketService) ListByCustomer(ctx context.Context, customerID string) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list customer tickets: %w", err)
	}
	return tickets, nil
}

// ListByAgent returns every ticket assigned to the agent.
func (s *TicketService) ListByAgent(ctx context.Context, agentID string) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("list agent tickets: %w", err)
	}
	return tickets, nil
}

// ListHistory returns the audit trail of an existing ticket, newest first.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := loadTicket(ctx, s.tickets, ticketID); err != nil {
		return nil, err
	}
	return s.audit.History(ctx, ticketID)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, s.now, event)
}

func loadTicket(ctx context.Context, tickets repository.TicketRepository, ticketID string) (*domain.Ticket, error) {
	ticket, err := tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError("get ticket", ticketID, err)
	}
	return ticket, nil
}

// storeError maps store sentinels to domain errors and wraps the rest.
func storeError(op, ticketID string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("Ticket", map[string]any{"ticketId": ticketID})
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict("Ticket was modified by another request", map[string]any{"ticketId": ticketID})
	default:
		return fmt.Errorf("%s %s: %w", op, ticketID, err)
	}
}

// recordAction appends an audit entry after a committed mutation. A failure
// is logged and returned; the mutation is not rolled back.
func recordAction(ctx context.Context, audit *AuditService, logger *zap.Logger, ticketID string, action domain.TicketAction, userID string, details AuditDetails) (*domain.TicketHistory, error) {
	entry, err := audit.RecordTicketAction(ctx, ticketID, action, userID, details)
	if err != nil {
		logger.Error("audit record failed after ticket mutation",
			zap.String("ticket_id", ticketID),
			zap.String("action", string(action)),
			zap.Error(err))
		return nil, fmt.Errorf("record %s for ticket %s: %w", action, ticketID, err)
	}
	return entry, nil
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, now func() time.Time, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now()
	}
	_ = dispatcher.Publish(ctx, event)
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func clockOrUTC(clock func() time.Time) func() time.Time {
	if clock == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return clock
}

func stringPtr(s string) *string {
	return &s
}

// stringPreview shortens body to at most max runes.
func stringPreview(body string, max int) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) <= max {
		return string(runes)
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
