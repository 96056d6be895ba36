package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
	MaxCommentLength     = 5000
)

// ValidationResult carries every rule violation found for an input.
type ValidationResult struct {
	IsValid bool
	Errors  []string
}

func newResult(errs []string) ValidationResult {
	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

// TicketInput is the raw ticket creation input before normalization.
// An empty Priority or Category means the field was not supplied.
type TicketInput struct {
	Title       string
	Description string
	Priority    TicketPriority
	Category    string
	CustomerID  string
}

// ValidateTicketCreation checks creation input and reports all violations.
func ValidateTicketCreation(in TicketInput) ValidationResult {
	var errs []string

	title := strings.TrimSpace(in.Title)
	if title == "" {
		errs = append(errs, "Ticket title is required")
	} else if utf8.RuneCountInString(title) > MaxTitleLength {
		errs = append(errs, fmt.Sprintf("Ticket title cannot exceed %d characters", MaxTitleLength))
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		errs = append(errs, "Ticket description is required")
	} else if utf8.RuneCountInString(description) > MaxDescriptionLength {
		errs = append(errs, fmt.Sprintf("Ticket description cannot exceed %d characters", MaxDescriptionLength))
	}

	if strings.TrimSpace(in.CustomerID) == "" {
		errs = append(errs, "Customer ID is required")
	}

	if in.Priority != "" && !in.Priority.Valid() {
		errs = append(errs, "Invalid ticket priority")
	}

	if in.Category != "" && strings.TrimSpace(in.Category) == "" {
		errs = append(errs, "Category cannot be empty if provided")
	}

	return newResult(errs)
}

// ValidateTicketAssignment checks whether the ticket may be given to agentID.
func ValidateTicketAssignment(ticket *Ticket, agentID string) ValidationResult {
	var errs []string
	if strings.TrimSpace(agentID) == "" {
		errs = append(errs, "Agent ID is required for assignment")
	}
	if ticket.IsClosed() {
		errs = append(errs, "Cannot assign closed tickets")
	}
	return newResult(errs)
}

// ValidateComment checks free-form comment text.
func ValidateComment(comment string) ValidationResult {
	var errs []string
	if strings.TrimSpace(comment) == "" {
		errs = append(errs, "Comment cannot be empty")
	}
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		errs = append(errs, fmt.Sprintf("Comment cannot exceed %d characters", MaxCommentLength))
	}
	return newResult(errs)
}

// ValidatePriorityChange checks a priority update against the current ticket.
func ValidatePriorityChange(ticket *Ticket, next TicketPriority) ValidationResult {
	var errs []string
	if !next.Valid() {
		errs = append(errs, "Invalid ticket priority")
	} else if ticket.Priority == next {
		errs = append(errs, "Ticket already has this priority")
	}
	if ticket.IsClosed() {
		errs = append(errs, "Cannot change priority of closed tickets")
	}
	return newResult(errs)
}

// CalculateResolutionTime returns how long the ticket took to resolve.
func CalculateResolutionTime(ticket *Ticket) (time.Duration, bool) {
	if ticket == nil || ticket.ResolvedAt == nil {
		return 0, false
	}
	return ticket.ResolvedAt.Sub(ticket.CreatedAt), true
}
