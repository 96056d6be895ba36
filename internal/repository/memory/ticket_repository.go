// Package memory provides map-backed stores that honor the same contracts as
// the PostgreSQL and bbolt stores. They back the test suites and the
// "memory" store driver.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
)

// Option configures a memory store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for server-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type ticketRepository struct {
	mu      sync.RWMutex
	now     func() time.Time
	tickets map[string]*domain.Ticket
	order   []string
}

// NewTicketRepository returns an empty in-memory ticket store.
func NewTicketRepository(opts ...Option) repository.TicketRepository {
	o := buildOptions(opts)
	return &ticketRepository{
		now:     o.now,
		tickets: make(map[string]*domain.Ticket),
	}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := r.now()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	ticket.Version = 1

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[ticket.ID] = ticket.Clone()
	r.order = append(r.order, ticket.ID)
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return stored.Clone(), nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != ticket.Version {
		return repository.ErrVersionConflict
	}
	next := ticket.Clone()
	next.CreatedAt = stored.CreatedAt
	next.Version = stored.Version + 1
	r.tickets[ticket.ID] = next
	ticket.Version = next.Version
	return nil
}

func (r *ticketRepository) List(ctx context.Context, filter repository.TicketFilter) (repository.Page, error) {
	if err := ctx.Err(); err != nil {
		return repository.Page{}, err
	}
	return repository.Paginate(r.collect(filter.Matches), filter), nil
}

func (r *ticketRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.collect(func(t *domain.Ticket) bool { return t.CustomerID == customerID }), nil
}

func (r *ticketRepository) ListByAgent(ctx context.Context, agentID string) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.collect(func(t *domain.Ticket) bool { return t.AgentID() == agentID }), nil
}

// collect returns matching tickets newest first.
func (r *ticketRepository) collect(match func(*domain.Ticket) bool) []domain.Ticket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := []domain.Ticket{}
	for i := len(r.order) - 1; i >= 0; i-- {
		stored := r.tickets[r.order[i]]
		if match(stored) {
			result = append(result, *stored.Clone())
		}
	}
	return result
}
