package repository

import (
	"errors"
	"math"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
)

var (
	// ErrNotFound is returned when the referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned by conditional updates whose version no
	// longer matches the stored record.
	ErrVersionConflict = errors.New("record version conflict")
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// TicketFilter captures list parameters. Nil fields do not filter.
type TicketFilter struct {
	Status          *domain.TicketStatus
	Priority        *domain.TicketPriority
	Category        *string
	CustomerID      *string
	AssignedAgentID *string
	Page            int
	Limit           int
}

// Normalize applies paging defaults.
func (f TicketFilter) Normalize() TicketFilter {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	return f
}

// Offset returns the zero-based index of the first item on the page. Pages
// too far out to address saturate at math.MaxInt.
func (f TicketFilter) Offset() int {
	n := f.Normalize()
	if n.Page-1 > math.MaxInt/n.Limit {
		return math.MaxInt
	}
	return (n.Page - 1) * n.Limit
}

// Matches reports whether the ticket satisfies every supplied predicate.
func (f TicketFilter) Matches(t *domain.Ticket) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Category != nil && t.Category != *f.Category {
		return false
	}
	if f.CustomerID != nil && t.CustomerID != *f.CustomerID {
		return false
	}
	if f.AssignedAgentID != nil && t.AgentID() != *f.AssignedAgentID {
		return false
	}
	return true
}

// Page is one slice of a filtered ticket listing.
type Page struct {
	Items      []domain.Ticket `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
}

// NewPage builds a page; total is the size of the filtered set.
func NewPage(items []domain.Ticket, total int, filter TicketFilter) Page {
	f := filter.Normalize()
	if items == nil {
		items = []domain.Ticket{}
	}
	return Page{
		Items:      items,
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: (total + f.Limit - 1) / f.Limit,
	}
}

// Paginate slices an already filtered and ordered set.
func Paginate(matched []domain.Ticket, filter TicketFilter) Page {
	f := filter.Normalize()
	start := min(f.Offset(), len(matched))
	end := start + min(f.Limit, len(matched)-start)
	items := make([]domain.Ticket, end-start)
	copy(items, matched[start:end])
	return NewPage(items, len(matched), f)
}
