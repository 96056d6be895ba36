// Package rediscache decorates a ticket store with a Redis read-through cache
// for single-ticket lookups.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
)

const defaultTTL = 5 * time.Minute

type ticketRepository struct {
	next   repository.TicketRepository
	client redislib.Cmdable
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewTicketRepository wraps next. Reads populate the cache and writes
// invalidate it; cache failures are logged and never fail the call.
func NewTicketRepository(next repository.TicketRepository, client redislib.Cmdable, ttl time.Duration, logger *zap.Logger) repository.TicketRepository {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ticketRepository{
		next:   next,
		client: client,
		prefix: "ticket:",
		ttl:    ttl,
		logger: logger,
	}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := r.next.Create(ctx, ticket); err != nil {
		return err
	}
	r.store(ctx, ticket)
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	switch {
	case err == nil:
		var ticket domain.Ticket
		if jsonErr := json.Unmarshal(raw, &ticket); jsonErr == nil {
			return &ticket, nil
		}
		r.logger.Warn("discarding undecodable cached ticket", zap.String("ticket_id", id))
	case !errors.Is(err, redislib.Nil):
		r.logger.Warn("ticket cache read failed", zap.String("ticket_id", id), zap.Error(err))
	}

	ticket, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, ticket)
	return ticket, nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	err := r.next.Update(ctx, ticket)
	if delErr := r.client.Del(ctx, r.key(ticket.ID)).Err(); delErr != nil {
		r.logger.Warn("ticket cache invalidation failed", zap.String("ticket_id", ticket.ID), zap.Error(delErr))
	}
	return err
}

func (r *ticketRepository) List(ctx context.Context, filter repository.TicketFilter) (repository.Page, error) {
	return r.next.List(ctx, filter)
}

func (r *ticketRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Ticket, error) {
	return r.next.ListByCustomer(ctx, customerID)
}

func (r *ticketRepository) ListByAgent(ctx context.Context, agentID string) ([]domain.Ticket, error) {
	return r.next.ListByAgent(ctx, agentID)
}

func (r *ticketRepository) store(ctx context.Context, ticket *domain.Ticket) {
	payload, err := json.Marshal(ticket)
	if err != nil {
		r.logger.Warn("ticket cache encode failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, r.key(ticket.ID), payload, r.ttl).Err(); err != nil {
		r.logger.Warn("ticket cache write failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

func (r *ticketRepository) key(id string) string {
	return fmt.Sprintf("%s%s", r.prefix, id)
}
