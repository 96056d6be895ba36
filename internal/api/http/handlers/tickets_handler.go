package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-lifecycle/internal/api/dto"
	"github.com/spec-kit/ticket-lifecycle/internal/service"
	apperrors "github.com/spec-kit/ticket-lifecycle/pkg/util/errorutil"
)

// TicketsHandler exposes the ticket lifecycle endpoints.
type TicketsHandler struct {
	tickets     *service.TicketService
	assignments *service.AssignmentService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, assignmentService *service.AssignmentService) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService, assignments: assignmentService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), req.ToInput())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.OK(ticket))
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	var query dto.TicketListQuery
	if err := c.QueryParser(&query); err != nil {
		return apperrors.NewValidationError("page and limit must be numbers")
	}
	filter, err := query.ToFilter()
	if err != nil {
		return err
	}
	page, err := h.tickets.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(page))
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.TicketDetail(ticket)))
}

// UpdateStatus PUT /api/tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	ticket, err := h.tickets.UpdateStatus(c.UserContext(), c.Params("id"), req.Status, req.UserID, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(ticket))
}

// AssignTicket PUT /api/tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	var req dto.AssignTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	ticket, err := h.assignments.AssignTicket(c.UserContext(), c.Params("id"), req.AgentID, req.AssignedBy)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(ticket))
}

// UpdatePriority PUT /api/tickets/:id/priority.
func (h *TicketsHandler) UpdatePriority(c *fiber.Ctx) error {
	var req dto.UpdatePriorityRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	ticket, err := h.tickets.UpdatePriority(c.UserContext(), c.Params("id"), req.Priority, req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(ticket))
}

// AddComment POST /api/tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	var req dto.AddCommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	entry, err := h.tickets.AddComment(c.UserContext(), c.Params("id"), req.UserID, req.Comment)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.OK(entry))
}

// ListHistory GET /api/tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	entries, err := h.tickets.ListHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(entries))
}

// ListCustomerTickets GET /api/customers/:customerId/tickets.
func (h *TicketsHandler) ListCustomerTickets(c *fiber.Ctx) error {
	tickets, err := h.tickets.ListByCustomer(c.UserContext(), c.Params("customerId"))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.TicketList(tickets)))
}

// ListAgentTickets GET /api/agents/:agentId/tickets.
func (h *TicketsHandler) ListAgentTickets(c *fiber.Ctx) error {
	tickets, err := h.tickets.ListByAgent(c.UserContext(), c.Params("agentId"))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.TicketList(tickets)))
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("request body must be valid JSON")
	}
	return nil
}
