package domain

import "time"

// TicketAction captures what happened in a history entry.
type TicketAction string

const (
	ActionCreated         TicketAction = "created"
	ActionStatusChanged   TicketAction = "status_changed"
	ActionAssigned        TicketAction = "assigned"
	ActionCommentAdded    TicketAction = "comment_added"
	ActionPriorityChanged TicketAction = "priority_changed"
	ActionResolved        TicketAction = "resolved"
	ActionClosed          TicketAction = "closed"
)

// TicketHistory is an immutable audit trail entry. It references the ticket
// by id only.
type TicketHistory struct {
	ID            string            `json:"id"`
	TicketID      string            `json:"ticketId"`
	UserID        string            `json:"userId"`
	Action        TicketAction      `json:"action"`
	PreviousValue *string           `json:"previousValue,omitempty"`
	NewValue      *string           `json:"newValue,omitempty"`
	Comment       *string           `json:"comment,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Clone returns a deep copy of the entry.
func (h *TicketHistory) Clone() *TicketHistory {
	if h == nil {
		return nil
	}
	c := *h
	c.PreviousValue = cloneString(h.PreviousValue)
	c.NewValue = cloneString(h.NewValue)
	c.Comment = cloneString(h.Comment)
	if h.Metadata != nil {
		c.Metadata = make(map[string]string, len(h.Metadata))
		for k, v := range h.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
