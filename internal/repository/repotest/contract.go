// Package repotest holds the behavioural contract every ticket and history
// store implementation must satisfy.
package repotest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
)

func newTicket(customer string, priority domain.TicketPriority) *domain.Ticket {
	return &domain.Ticket{
		Title:       "Printer broken",
		Description: "No toner",
		Status:      domain.TicketStatusNew,
		Priority:    priority,
		Category:    "Hardware",
		CustomerID:  customer,
	}
}

// TicketRepository runs the ticket store contract against fresh stores.
func TicketRepository(t *testing.T, newRepo func(t *testing.T) repository.TicketRepository) {
	t.Run("create assigns identity", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ticket := newTicket("cust-1", domain.TicketPriorityHigh)
		require.NoError(t, repo.Create(ctx, ticket))

		assert.NotEmpty(t, ticket.ID)
		assert.False(t, ticket.CreatedAt.IsZero())
		assert.Equal(t, ticket.CreatedAt, ticket.UpdatedAt)
		assert.Equal(t, int64(1), ticket.Version)

		stored, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, ticket.Title, stored.Title)
		assert.Equal(t, domain.TicketStatusNew, stored.Status)
	})

	t.Run("missing ticket", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetByID(context.Background(), "does-not-exist")
		assert.ErrorIs(t, err, repository.ErrNotFound)

		err = repo.Update(context.Background(), &domain.Ticket{ID: "does-not-exist", Version: 1})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("update is conditional on version", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ticket := newTicket("cust-1", domain.TicketPriorityLow)
		require.NoError(t, repo.Create(ctx, ticket))

		first, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		second, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)

		agent := "agent-1"
		first.AssignedAgentID = &agent
		first.ApplyStatus(domain.TicketStatusAssigned, time.Now().UTC())
		require.NoError(t, repo.Update(ctx, first))
		assert.Equal(t, int64(2), first.Version)

		second.ApplyStatus(domain.TicketStatusClosed, time.Now().UTC())
		assert.ErrorIs(t, repo.Update(ctx, second), repository.ErrVersionConflict)

		stored, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusAssigned, stored.Status)
		assert.Equal(t, "agent-1", stored.AgentID())
		assert.Nil(t, stored.ClosedAt)
	})

	t.Run("stored ticket is isolated from caller", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ticket := newTicket("cust-1", domain.TicketPriorityLow)
		require.NoError(t, repo.Create(ctx, ticket))

		ticket.Title = "mutated after create"
		stored, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, "Printer broken", stored.Title)
	})

	t.Run("list filters and paginates", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		for i := 0; i < 25; i++ {
			require.NoError(t, repo.Create(ctx, newTicket("cust-1", domain.TicketPriorityHigh)))
		}
		for i := 0; i < 7; i++ {
			require.NoError(t, repo.Create(ctx, newTicket("cust-2", domain.TicketPriorityLow)))
		}

		customer := "cust-1"
		page, err := repo.List(ctx, repository.TicketFilter{CustomerID: &customer})
		require.NoError(t, err)
		assert.Equal(t, 25, page.Total)
		assert.Equal(t, 2, page.TotalPages)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 20, page.Limit)
		assert.Len(t, page.Items, 20)
		for _, item := range page.Items {
			assert.Equal(t, "cust-1", item.CustomerID)
		}

		page2, err := repo.List(ctx, repository.TicketFilter{CustomerID: &customer, Page: 2})
		require.NoError(t, err)
		assert.Len(t, page2.Items, 5)

		low := domain.TicketPriorityLow
		lowPage, err := repo.List(ctx, repository.TicketFilter{Priority: &low, CustomerID: &customer})
		require.NoError(t, err)
		assert.Equal(t, 0, lowPage.Total)
		assert.Empty(t, lowPage.Items)

		all, err := repo.List(ctx, repository.TicketFilter{Limit: 100})
		require.NoError(t, err)
		assert.Equal(t, 32, all.Total)
		assert.Equal(t, 1, all.TotalPages)
	})

	t.Run("list newest first", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		var ids []string
		for i := 0; i < 3; i++ {
			ticket := newTicket("cust-1", domain.TicketPriorityMedium)
			ticket.Title = fmt.Sprintf("ticket %d", i)
			require.NoError(t, repo.Create(ctx, ticket))
			ids = append(ids, ticket.ID)
		}
		page, err := repo.List(ctx, repository.TicketFilter{})
		require.NoError(t, err)
		require.Len(t, page.Items, 3)
		assert.Equal(t, ids[2], page.Items[0].ID)
		assert.Equal(t, ids[0], page.Items[2].ID)
	})

	t.Run("list by customer and agent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.Create(ctx, newTicket("cust-1", domain.TicketPriorityHigh)))
		}
		other := newTicket("cust-2", domain.TicketPriorityHigh)
		require.NoError(t, repo.Create(ctx, other))

		agent := "agent-7"
		other.AssignedAgentID = &agent
		require.NoError(t, repo.Update(ctx, other))

		byCustomer, err := repo.ListByCustomer(ctx, "cust-1")
		require.NoError(t, err)
		assert.Len(t, byCustomer, 3)

		byAgent, err := repo.ListByAgent(ctx, "agent-7")
		require.NoError(t, err)
		require.Len(t, byAgent, 1)
		assert.Equal(t, other.ID, byAgent[0].ID)

		none, err := repo.ListByAgent(ctx, "agent-unknown")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

// TicketHistoryRepository runs the history store contract against fresh stores.
func TicketHistoryRepository(t *testing.T, newRepo func(t *testing.T) repository.TicketHistoryRepository) {
	t.Run("append assigns identity", func(t *testing.T) {
		repo := newRepo(t)
		prev, next := "new", "assigned"
		entry := &domain.TicketHistory{
			TicketID:      "ticket-1",
			UserID:        "agent-1",
			Action:        domain.ActionStatusChanged,
			PreviousValue: &prev,
			NewValue:      &next,
			Metadata:      map[string]string{"source": "test"},
		}
		require.NoError(t, repo.Create(context.Background(), entry))
		assert.NotEmpty(t, entry.ID)
		assert.False(t, entry.Timestamp.IsZero())

		entries, err := repo.ListByTicket(context.Background(), "ticket-1")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "new", *entries[0].PreviousValue)
		assert.Equal(t, "assigned", *entries[0].NewValue)
		assert.Nil(t, entries[0].Comment)
		assert.Equal(t, "test", entries[0].Metadata["source"])
	})

	t.Run("newest first and scoped to ticket", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		actions := []domain.TicketAction{domain.ActionCreated, domain.ActionAssigned, domain.ActionStatusChanged, domain.ActionCommentAdded}
		for _, action := range actions {
			require.NoError(t, repo.Create(ctx, &domain.TicketHistory{TicketID: "ticket-1", UserID: "u", Action: action}))
		}
		require.NoError(t, repo.Create(ctx, &domain.TicketHistory{TicketID: "ticket-2", UserID: "u", Action: domain.ActionCreated}))

		entries, err := repo.ListByTicket(ctx, "ticket-1")
		require.NoError(t, err)
		require.Len(t, entries, 4)
		for i, entry := range entries {
			assert.Equal(t, actions[len(actions)-1-i], entry.Action)
			assert.Equal(t, "ticket-1", entry.TicketID)
		}
		for i := 1; i < len(entries); i++ {
			assert.False(t, entries[i].Timestamp.After(entries[i-1].Timestamp))
		}

		none, err := repo.ListByTicket(ctx, "ticket-unknown")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
