package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
	"github.com/spec-kit/ticket-lifecycle/internal/repository/repotest"
)

func TestTicketRepositoryContract(t *testing.T) {
	repotest.TicketRepository(t, func(t *testing.T) repository.TicketRepository {
		return NewTicketRepository()
	})
}

func TestTicketHistoryRepositoryContract(t *testing.T) {
	repotest.TicketHistoryRepository(t, func(t *testing.T) repository.TicketHistoryRepository {
		return NewTicketHistoryRepository()
	})
}

func TestHistoryTimestampsNeverGoBackwards(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(-time.Minute), base.Add(time.Minute)}
	i := 0
	repo := NewTicketHistoryRepository(WithClock(func() time.Time {
		ts := times[i]
		i++
		return ts
	}))

	ctx := context.Background()
	for range times {
		require.NoError(t, repo.Create(ctx, &domain.TicketHistory{TicketID: "t", Action: domain.ActionCommentAdded}))
	}
	entries, err := repo.ListByTicket(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Minute), entries[0].Timestamp)
	assert.Equal(t, base, entries[1].Timestamp)
	assert.Equal(t, base, entries[2].Timestamp)
}

func TestConcurrentUpdatesAllowExactlyOneWinner(t *testing.T) {
	repo := NewTicketRepository()
	ctx := context.Background()
	ticket := &domain.Ticket{Title: "t", Description: "d", Status: domain.TicketStatusNew, CustomerID: "c"}
	require.NoError(t, repo.Create(ctx, ticket))

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			copyOf := ticket.Clone()
			copyOf.Touch(time.Now().UTC())
			err := repo.Update(ctx, copyOf)
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				wins++
			case repository.ErrVersionConflict:
				conflicts++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, conflicts)
}

func TestCanceledContext(t *testing.T) {
	repo := NewTicketRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := repo.GetByID(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
