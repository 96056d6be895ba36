package domain

import "time"

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusNew:        {TicketStatusAssigned, TicketStatusClosed},
	TicketStatusAssigned:   {TicketStatusInProgress, TicketStatusPending, TicketStatusClosed},
	TicketStatusInProgress: {TicketStatusPending, TicketStatusResolved, TicketStatusClosed},
	TicketStatusPending:    {TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed},
	TicketStatusResolved:   {TicketStatusClosed, TicketStatusInProgress},
	TicketStatusClosed:     {},
}

// ValidateStatusTransition reports whether current -> next is in the
// transition table. Same-state moves are never allowed.
func ValidateStatusTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from current.
func AllowedTransitions(current TicketStatus) []TicketStatus {
	out := make([]TicketStatus, len(allowedTransitions[current]))
	copy(out, allowedTransitions[current])
	return out
}

// ApplyStatus moves the ticket to next and stamps the lifecycle timestamps.
// The caller is responsible for checking the transition first.
func (t *Ticket) ApplyStatus(next TicketStatus, now time.Time) {
	at := t.Touch(now)
	t.Status = next
	switch next {
	case TicketStatusResolved:
		t.ResolvedAt = &at
	case TicketStatusClosed:
		t.ClosedAt = &at
	}
}
