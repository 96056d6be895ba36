package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
)

// TicketHistoryRepository stores audit entries. Entries are append-only.
type TicketHistoryRepository interface {
	// Create assigns ID and Timestamp.
	Create(ctx context.Context, history *domain.TicketHistory) error
	// ListByTicket returns entries newest first.
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds the PostgreSQL repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, user_id, action, previous_value, new_value, comment, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, occurred_at`
	metadata := history.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	return r.pool.QueryRow(ctx, query,
		history.TicketID,
		history.UserID,
		history.Action,
		history.PreviousValue,
		history.NewValue,
		history.Comment,
		metadata,
	).Scan(&history.ID, &history.Timestamp)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_id, user_id, action, previous_value, new_value, comment, metadata, occurred_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY occurred_at DESC, seq DESC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TicketHistory{}
	for rows.Next() {
		var history domain.TicketHistory
		if err := rows.Scan(
			&history.ID,
			&history.TicketID,
			&history.UserID,
			&history.Action,
			&history.PreviousValue,
			&history.NewValue,
			&history.Comment,
			&history.Metadata,
			&history.Timestamp,
		); err != nil {
			return nil, err
		}
		if len(history.Metadata) == 0 {
			history.Metadata = nil
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
