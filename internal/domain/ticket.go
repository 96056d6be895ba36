package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "new"
	TicketStatusAssigned   TicketStatus = "assigned"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketStatuses lists every known status in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusNew,
	TicketStatusAssigned,
	TicketStatusInProgress,
	TicketStatusPending,
	TicketStatusResolved,
	TicketStatusClosed,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	for _, known := range TicketStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// TicketPriorities lists every known priority from lowest to highest.
var TicketPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityUrgent,
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	for _, known := range TicketPriorities {
		if p == known {
			return true
		}
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Status          TicketStatus   `json:"status"`
	Priority        TicketPriority `json:"priority"`
	Category        string         `json:"category"`
	CustomerID      string         `json:"customerId"`
	AssignedAgentID *string        `json:"assignedAgentId,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	ResolvedAt      *time.Time     `json:"resolvedAt,omitempty"`
	ClosedAt        *time.Time     `json:"closedAt,omitempty"`
	Version         int64          `json:"version"`
}

// Clone returns a deep copy so stores never share pointers with callers.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	if t.AssignedAgentID != nil {
		agent := *t.AssignedAgentID
		c.AssignedAgentID = &agent
	}
	if t.ResolvedAt != nil {
		resolved := *t.ResolvedAt
		c.ResolvedAt = &resolved
	}
	if t.ClosedAt != nil {
		closed := *t.ClosedAt
		c.ClosedAt = &closed
	}
	return &c
}

// AgentID returns the assigned agent or an empty string.
func (t *Ticket) AgentID() string {
	if t == nil || t.AssignedAgentID == nil {
		return ""
	}
	return *t.AssignedAgentID
}

// Touch advances UpdatedAt to now. When the clock has not moved past the
// previous value, UpdatedAt is nudged forward so it still strictly increases.
func (t *Ticket) Touch(now time.Time) time.Time {
	if !now.After(t.UpdatedAt) {
		now = t.UpdatedAt.Add(time.Microsecond)
	}
	t.UpdatedAt = now
	return now
}

// IsClosed reports whether the ticket reached the terminal state.
func (t *Ticket) IsClosed() bool {
	return t != nil && t.Status == TicketStatusClosed
}
