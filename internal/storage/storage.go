// Package storage defines the key-value contract used for session-scoped
// state and the factory that opens the configured backend.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/bobmcallan/optiwealth-portal/internal/config"
	"github.com/bobmcallan/optiwealth-portal/internal/storage/badger"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = badger.ErrNotFound

// KeyValueStorage provides byte-oriented key-value operations. A zero TTL
// means the entry never expires.
type KeyValueStorage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Manager owns the storage backend's lifetime.
type Manager interface {
	KeyValueStorage() KeyValueStorage
	Close() error
}

// IsNotFound reports whether err means a missing key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// NewStorageManager creates a new storage manager based on config.
func NewStorageManager(logger *common.Logger, cfg *config.Config) (Manager, error) {
	m, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, err
	}
	return managerAdapter{m}, nil
}

// managerAdapter narrows the badger manager's concrete return type to the
// interface.
type managerAdapter struct {
	*badger.Manager
}

func (m managerAdapter) KeyValueStorage() KeyValueStorage {
	return m.Manager.KeyValueStorage()
}
