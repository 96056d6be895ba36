package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/events"
	"github.com/spec-kit/ticket-lifecycle/internal/observability"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
	"github.com/spec-kit/ticket-lifecycle/internal/repository/memory"
)

type harness struct {
	tickets repository.TicketRepository
	history repository.TicketHistoryRepository
	audit   *AuditService
	metrics *observability.Metrics
	tickSvc *TicketService
	assign  *AssignmentService
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	clock   func() time.Time
	tickets func(repository.TicketRepository) repository.TicketRepository
	history func(repository.TicketHistoryRepository) repository.TicketHistoryRepository
}

func withClock(clock func() time.Time) harnessOption {
	return func(c *harnessConfig) { c.clock = clock }
}

func withTicketRepo(wrap func(repository.TicketRepository) repository.TicketRepository) harnessOption {
	return func(c *harnessConfig) { c.tickets = wrap }
}

func withHistoryRepo(wrap func(repository.TicketHistoryRepository) repository.TicketHistoryRepository) harnessOption {
	return func(c *harnessConfig) { c.history = wrap }
}

// steppingClock advances one second per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{clock: steppingClock()}
	for _, opt := range opts {
		opt(&cfg)
	}

	var tickets repository.TicketRepository = memory.NewTicketRepository(memory.WithClock(cfg.clock))
	if cfg.tickets != nil {
		tickets = cfg.tickets(tickets)
	}
	var history repository.TicketHistoryRepository = memory.NewTicketHistoryRepository(memory.WithClock(cfg.clock))
	if cfg.history != nil {
		history = cfg.history(history)
	}

	dispatcher := events.NewInMemoryDispatcher(nil)
	metrics := observability.NewMetrics()
	NewActivityService(dispatcher, metrics, nil).RegisterHandlers()

	audit := NewAuditService(history, nil)
	return &harness{
		tickets: tickets,
		history: history,
		audit:   audit,
		metrics: metrics,
		tickSvc: NewTicketService(TicketDependencies{
			TicketRepo: tickets,
			Audit:      audit,
			Dispatcher: dispatcher,
			Clock:      cfg.clock,
		}),
		assign: NewAssignmentService(AssignmentDependencies{
			TicketRepo: tickets,
			Audit:      audit,
			Dispatcher: dispatcher,
			Clock:      cfg.clock,
		}),
	}
}

func printerInput() domain.TicketInput {
	return domain.TicketInput{
		Title:       "Printer broken",
		Description: "No toner",
		Priority:    domain.TicketPriorityHigh,
		Category:    "Hardware",
		CustomerID:  "cust-1",
	}
}

func (h *harness) create(t *testing.T, input domain.TicketInput) *domain.Ticket {
	t.Helper()
	ticket, err := h.tickSvc.CreateTicket(context.Background(), input)
	require.NoError(t, err)
	return ticket
}

var errHistoryDown = errors.New("history store unavailable")

// flakyHistory fails every Create after the first allowed calls.
type flakyHistory struct {
	repository.TicketHistoryRepository
	mu      sync.Mutex
	allowed int
}

func (f *flakyHistory) Create(ctx context.Context, entry *domain.TicketHistory) error {
	f.mu.Lock()
	if f.allowed <= 0 {
		f.mu.Unlock()
		return errHistoryDown
	}
	f.allowed--
	f.mu.Unlock()
	return f.TicketHistoryRepository.Create(ctx, entry)
}

// racingTickets lets another writer update the ticket right before the
// service's own conditional write.
type racingTickets struct {
	repository.TicketRepository
	race func(ctx context.Context, id string)
}

func (r *racingTickets) Update(ctx context.Context, ticket *domain.Ticket) error {
	if race := r.race; race != nil {
		r.race = nil
		race(ctx, ticket.ID)
	}
	return r.TicketRepository.Update(ctx, ticket)
}

func ptr[T any](v T) *T {
	return &v
}
