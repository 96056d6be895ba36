package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
)

type ticketHistoryRepository struct {
	db  *bolt.DB
	now func() time.Time
}

// NewTicketHistoryRepository ensures the history bucket exists and returns
// the store. Keys are "<ticketID>\x00<seq>" so one ticket's entries are a
// contiguous range in append order.
func NewTicketHistoryRepository(db *bolt.DB) (repository.TicketHistoryRepository, error) {
	if err := ensureBuckets(db, historyBucket); err != nil {
		return nil, err
	}
	return &ticketHistoryRepository{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry := history.Clone()
	entry.ID = uuid.NewString()
	entry.Timestamp = r.now()

	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	err = r.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(historyBucket)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		return bucket.Put(historyKey(entry.TicketID, seq), payload)
	})
	if err != nil {
		return err
	}
	history.ID = entry.ID
	history.Timestamp = entry.Timestamp
	return nil
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := historyPrefix(ticketID)
	var ascending []domain.TicketHistory
	err := r.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(historyBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var entry domain.TicketHistory
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			ascending = append(ascending, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result := make([]domain.TicketHistory, 0, len(ascending))
	for i := len(ascending) - 1; i >= 0; i-- {
		result = append(result, ascending[i])
	}
	return result, nil
}

func historyPrefix(ticketID string) []byte {
	return append([]byte(ticketID), 0)
}

func historyKey(ticketID string, seq uint64) []byte {
	return append(historyPrefix(ticketID), seqKey(seq)...)
}
