package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
	"github.com/spec-kit/ticket-lifecycle/internal/repository/repotest"
)

func openTestDB(t *testing.T) *bolt.DB {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "tickets.db"), 0o600, &bolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestTicketRepositoryContract(t *testing.T) {
	repotest.TicketRepository(t, func(t *testing.T) repository.TicketRepository {
		repo, err := NewTicketRepository(openTestDB(t))
		require.NoError(t, err)
		return repo
	})
}

func TestTicketHistoryRepositoryContract(t *testing.T) {
	repotest.TicketHistoryRepository(t, func(t *testing.T) repository.TicketHistoryRepository {
		repo, err := NewTicketHistoryRepository(openTestDB(t))
		require.NoError(t, err)
		return repo
	})
}

func TestHistoryPrefixDoesNotLeakAcrossTickets(t *testing.T) {
	repo, err := NewTicketHistoryRepository(openTestDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.TicketHistory{TicketID: "ab", Action: domain.ActionCreated}))
	require.NoError(t, repo.Create(ctx, &domain.TicketHistory{TicketID: "abc", Action: domain.ActionCreated}))

	entries, err := repo.ListByTicket(ctx, "ab")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ab", entries[0].TicketID)
}

func TestDataSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.db")
	db, err := bolt.Open(path, 0o600, nil)
	require.NoError(t, err)

	repo, err := NewTicketRepository(db)
	require.NoError(t, err)
	ticket := &domain.Ticket{Title: "t", Description: "d", Status: domain.TicketStatusNew, Priority: domain.TicketPriorityLow, Category: "c", CustomerID: "cust"}
	require.NoError(t, repo.Create(context.Background(), ticket))
	require.NoError(t, db.Close())

	db, err = bolt.Open(path, 0o600, nil)
	require.NoError(t, err)
	defer db.Close()
	repo, err = NewTicketRepository(db)
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.CreatedAt.UnixNano(), stored.CreatedAt.UnixNano())
	assert.Equal(t, int64(1), stored.Version)
}
