package dto

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
	apperrors "github.com/spec-kit/ticket-lifecycle/pkg/util/errorutil"
)

const (
	maxTitleLength    = 200
	maxDescLength     = 5000
	maxCategoryLength = 100
	maxCommentLength  = 1000
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Category    string                `json:"category"`
	CustomerID  string                `json:"customerId"`
}

// Validate applies the request schema.
func (r CreateTicketRequest) Validate() error {
	var errs []string
	errs = appendRequired(errs, "title", r.Title)
	errs = appendTooLong(errs, "title", r.Title, maxTitleLength)
	errs = appendRequired(errs, "description", r.Description)
	errs = appendTooLong(errs, "description", r.Description, maxDescLength)
	if r.Priority == "" {
		errs = append(errs, "priority is required")
	} else if !r.Priority.Valid() {
		errs = append(errs, "priority must be one of "+joinPriorities())
	}
	errs = appendRequired(errs, "category", r.Category)
	errs = appendTooLong(errs, "category", r.Category, maxCategoryLength)
	errs = appendRequired(errs, "customerId", r.CustomerID)
	return validationError(errs)
}

// ToInput converts the request into domain input.
func (r CreateTicketRequest) ToInput() domain.TicketInput {
	return domain.TicketInput{
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Category:    r.Category,
		CustomerID:  r.CustomerID,
	}
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status  domain.TicketStatus `json:"status"`
	UserID  string              `json:"userId"`
	Comment string              `json:"comment"`
}

// Validate applies the request schema.
func (r UpdateStatusRequest) Validate() error {
	var errs []string
	if r.Status == "" {
		errs = append(errs, "status is required")
	} else if !r.Status.Valid() {
		errs = append(errs, "status must be one of "+joinStatuses())
	}
	errs = appendRequired(errs, "userId", r.UserID)
	errs = appendTooLong(errs, "comment", r.Comment, maxCommentLength)
	return validationError(errs)
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AgentID    string `json:"agentId"`
	AssignedBy string `json:"assignedBy"`
}

// Validate applies the request schema.
func (r AssignTicketRequest) Validate() error {
	var errs []string
	errs = appendRequired(errs, "agentId", r.AgentID)
	errs = appendRequired(errs, "assignedBy", r.AssignedBy)
	return validationError(errs)
}

// UpdatePriorityRequest payload.
type UpdatePriorityRequest struct {
	Priority domain.TicketPriority `json:"priority"`
	UserID   string                `json:"userId"`
}

// Validate applies the request schema.
func (r UpdatePriorityRequest) Validate() error {
	var errs []string
	if r.Priority == "" {
		errs = append(errs, "priority is required")
	} else if !r.Priority.Valid() {
		errs = append(errs, "priority must be one of "+joinPriorities())
	}
	errs = appendRequired(errs, "userId", r.UserID)
	return validationError(errs)
}

// AddCommentRequest payload.
type AddCommentRequest struct {
	UserID  string `json:"userId"`
	Comment string `json:"comment"`
}

// Validate applies the request schema.
func (r AddCommentRequest) Validate() error {
	var errs []string
	errs = appendRequired(errs, "userId", r.UserID)
	errs = appendRequired(errs, "comment", r.Comment)
	errs = appendTooLong(errs, "comment", r.Comment, maxCommentLength)
	return validationError(errs)
}

// TicketListQuery captures query filters for the listing endpoint.
type TicketListQuery struct {
	Status     string `query:"status"`
	Priority   string `query:"priority"`
	Category   string `query:"category"`
	CustomerID string `query:"customerId"`
	AssignedTo string `query:"assignedTo"`
	Page       int    `query:"page"`
	Limit      int    `query:"limit"`
}

// ToFilter validates enum values and builds a store filter.
func (q TicketListQuery) ToFilter() (repository.TicketFilter, error) {
	var errs []string
	filter := repository.TicketFilter{Page: q.Page, Limit: q.Limit}

	if q.Status != "" {
		status := domain.TicketStatus(q.Status)
		if !status.Valid() {
			errs = append(errs, "status must be one of "+joinStatuses())
		}
		filter.Status = &status
	}
	if q.Priority != "" {
		priority := domain.TicketPriority(q.Priority)
		if !priority.Valid() {
			errs = append(errs, "priority must be one of "+joinPriorities())
		}
		filter.Priority = &priority
	}
	if q.Page < 0 {
		errs = append(errs, "page must be a positive number")
	}
	if q.Limit < 0 || q.Limit > repository.MaxPageLimit {
		errs = append(errs, fmt.Sprintf("limit must be between 1 and %d", repository.MaxPageLimit))
	}
	if err := validationError(errs); err != nil {
		return repository.TicketFilter{}, err
	}

	filter.Category = optional(q.Category)
	filter.CustomerID = optional(q.CustomerID)
	filter.AssignedAgentID = optional(q.AssignedTo)
	return filter.Normalize(), nil
}

// SuccessResponse wraps every successful API payload.
type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// OK wraps data in the success envelope.
func OK(data any) SuccessResponse {
	return SuccessResponse{Success: true, Data: data}
}

// TicketDetailResponse adds derived lifecycle data to a ticket.
type TicketDetailResponse struct {
	*domain.Ticket
	AllowedTransitions    []domain.TicketStatus `json:"allowedTransitions"`
	ResolutionTimeSeconds *float64              `json:"resolutionTimeSeconds,omitempty"`
}

// TicketDetail builds the detail view of ticket.
func TicketDetail(ticket *domain.Ticket) TicketDetailResponse {
	resp := TicketDetailResponse{
		Ticket:             ticket,
		AllowedTransitions: domain.AllowedTransitions(ticket.Status),
	}
	if d, ok := domain.CalculateResolutionTime(ticket); ok {
		seconds := d.Round(time.Millisecond).Seconds()
		resp.ResolutionTimeSeconds = &seconds
	}
	return resp
}

// TicketListResponse is the body of per-customer and per-agent listings.
type TicketListResponse struct {
	Items []domain.Ticket `json:"items"`
	Total int             `json:"total"`
}

// TicketList wraps a full listing.
func TicketList(tickets []domain.Ticket) TicketListResponse {
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return TicketListResponse{Items: tickets, Total: len(tickets)}
}

func appendRequired(errs []string, field, value string) []string {
	if strings.TrimSpace(value) == "" {
		return append(errs, field+" is required")
	}
	return errs
}

func appendTooLong(errs []string, field, value string, max int) []string {
	if utf8.RuneCountInString(value) > max {
		return append(errs, fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return errs
}

func validationError(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return apperrors.NewValidationError(errs...)
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func joinStatuses() string {
	parts := make([]string, len(domain.TicketStatuses))
	for i, s := range domain.TicketStatuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

func joinPriorities() string {
	parts := make([]string, len(domain.TicketPriorities))
	for i, p := range domain.TicketPriorities {
		parts[i] = string(p)
	}
	return strings.Join(parts, ", ")
}
