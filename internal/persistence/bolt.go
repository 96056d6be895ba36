package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lifecycle/internal/config"
)

// Bolt wraps an embedded bbolt database file.
type Bolt struct {
	DB *bolt.DB
}

// OpenBolt creates the parent directory and opens the database file.
func OpenBolt(cfg config.BoltConfig, logger *zap.Logger) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: cfg.Timeout()})
	if err != nil {
		return nil, err
	}
	logger.Info("opened bolt database", zap.String("path", cfg.Path))
	return &Bolt{DB: db}, nil
}

// Close releases the file lock.
func (b *Bolt) Close() {
	if b != nil && b.DB != nil {
		_ = b.DB.Close()
	}
}

// Ping verifies the database can serve a read transaction.
func (b *Bolt) Ping(ctx context.Context) error {
	if b == nil || b.DB == nil {
		return errors.New("bolt database not open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.DB.View(func(*bolt.Tx) error { return nil })
}
