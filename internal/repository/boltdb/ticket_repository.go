// Package boltdb stores tickets and their history in an embedded bbolt file.
package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
)

var (
	ticketsBucket     = []byte("tickets")
	ticketOrderBucket = []byte("tickets_by_seq")
	historyBucket     = []byte("ticket_history")
)

type ticketRepository struct {
	db  *bolt.DB
	now func() time.Time
}

// NewTicketRepository ensures the ticket buckets exist and returns the store.
func NewTicketRepository(db *bolt.DB) (repository.TicketRepository, error) {
	if err := ensureBuckets(db, ticketsBucket, ticketOrderBucket); err != nil {
		return nil, err
	}
	return &ticketRepository{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func ensureBuckets(db *bolt.DB, names ...[]byte) error {
	if db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return db.Update(func(tx *bolt.Tx) error {
		for _, name := range names {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	created := ticket.Clone()
	now := r.now()
	created.ID = uuid.NewString()
	created.CreatedAt = now
	created.UpdatedAt = now
	created.Version = 1

	payload, err := json.Marshal(created)
	if err != nil {
		return err
	}
	err = r.db.Update(func(tx *bolt.Tx) error {
		order := tx.Bucket(ticketOrderBucket)
		seq, err := order.NextSequence()
		if err != nil {
			return err
		}
		if err := order.Put(seqKey(seq), []byte(created.ID)); err != nil {
			return err
		}
		return tx.Bucket(ticketsBucket).Put([]byte(created.ID), payload)
	})
	if err != nil {
		return err
	}
	ticket.ID = created.ID
	ticket.CreatedAt = created.CreatedAt
	ticket.UpdatedAt = created.UpdatedAt
	ticket.Version = created.Version
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ticket *domain.Ticket
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		ticket, err = readTicket(tx.Bucket(ticketsBucket), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var version int64
	err := r.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(ticketsBucket)
		stored, err := readTicket(bucket, ticket.ID)
		if err != nil {
			return err
		}
		if stored.Version != ticket.Version {
			return repository.ErrVersionConflict
		}
		next := ticket.Clone()
		next.CreatedAt = stored.CreatedAt
		next.Version = stored.Version + 1
		payload, err := json.Marshal(next)
		if err != nil {
			return err
		}
		version = next.Version
		return bucket.Put([]byte(next.ID), payload)
	})
	if err != nil {
		return err
	}
	ticket.Version = version
	return nil
}

func (r *ticketRepository) List(ctx context.Context, filter repository.TicketFilter) (repository.Page, error) {
	if err := ctx.Err(); err != nil {
		return repository.Page{}, err
	}
	matched, err := r.collect(filter.Matches)
	if err != nil {
		return repository.Page{}, err
	}
	return repository.Paginate(matched, filter), nil
}

func (r *ticketRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.collect(func(t *domain.Ticket) bool { return t.CustomerID == customerID })
}

func (r *ticketRepository) ListByAgent(ctx context.Context, agentID string) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.collect(func(t *domain.Ticket) bool { return t.AgentID() == agentID })
}

// collect walks the creation-order index backwards so results are newest first.
func (r *ticketRepository) collect(match func(*domain.Ticket) bool) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	err := r.db.View(func(tx *bolt.Tx) error {
		tickets := tx.Bucket(ticketsBucket)
		c := tx.Bucket(ticketOrderBucket).Cursor()
		for k, id := c.Last(); k != nil; k, id = c.Prev() {
			ticket, err := readTicket(tickets, string(id))
			if err != nil {
				return err
			}
			if match(ticket) {
				result = append(result, *ticket)
			}
		}
		return nil
	})
	return result, err
}

func readTicket(bucket *bolt.Bucket, id string) (*domain.Ticket, error) {
	raw := bucket.Get([]byte(id))
	if raw == nil {
		return nil, repository.ErrNotFound
	}
	var ticket domain.Ticket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
