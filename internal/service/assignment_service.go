package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/events"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
	apperrors "github.com/spec-kit/ticket-lifecycle/pkg/util/errorutil"
)

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	tickets    repository.TicketRepository
	audit      *AuditService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	TicketRepo repository.TicketRepository
	Audit      *AuditService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		tickets:    deps.TicketRepo,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
		logger:     loggerOrNop(deps.Logger),
		now:        clockOrUTC(deps.Clock),
	}
}

// AssignTicket gives the ticket to agentID. A NEW ticket moves to ASSIGNED;
// any other status is kept, so reassignment never rewinds progress.
func (s *AssignmentService) AssignTicket(ctx context.Context, ticketID, agentID, assignedBy string) (*domain.Ticket, error) {
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if result := domain.ValidateTicketAssignment(ticket, agentID); !result.IsValid {
		return nil, apperrors.NewAssignmentError(result.Errors...)
	}

	agentID = strings.TrimSpace(agentID)
	previous := ticket.AssignedAgentID
	ticket.AssignedAgentID = &agentID
	if ticket.Status == domain.TicketStatusNew {
		ticket.Status = domain.TicketStatusAssigned
	}
	ticket.Touch(s.now())

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, storeError("assign ticket", ticketID, err)
	}

	_, err = recordAction(ctx, s.audit, s.logger, ticket.ID, domain.ActionAssigned, assignedBy, AuditDetails{
		PreviousValue: previous,
		NewValue:      stringPtr(agentID),
		Metadata:      map[string]string{"agentId": agentID},
	})
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, s.dispatcher, s.now, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		UserID:   assignedBy,
		Payload: events.TicketAssignedPayload{
			PreviousAgentID: previous,
			AgentID:         agentID,
			Status:          ticket.Status,
		},
	})
	return ticket, nil
}
