package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
)

type ticketHistoryRepository struct {
	mu      sync.RWMutex
	now     func() time.Time
	last    time.Time
	entries []*domain.TicketHistory
}

// NewTicketHistoryRepository returns an empty append-only history store.
func NewTicketHistoryRepository(opts ...Option) repository.TicketHistoryRepository {
	o := buildOptions(opts)
	return &ticketHistoryRepository{now: o.now}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now()
	if ts.Before(r.last) {
		ts = r.last
	}
	r.last = ts

	history.ID = uuid.NewString()
	history.Timestamp = ts
	r.entries = append(r.entries, history.Clone())
	return nil
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := []domain.TicketHistory{}
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].TicketID == ticketID {
			result = append(result, *r.entries[i].Clone())
		}
	}
	return result, nil
}
