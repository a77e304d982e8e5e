package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a key is absent or its TTL has passed.
var ErrNotFound = errors.New("key not found")

// KVStorage is a byte key-value store backed by BadgerDB.
type KVStorage struct {
	db     *BadgerDB
	logger *common.Logger
}

// NewKVStorage creates a new key-value storage backed by BadgerDB.
func NewKVStorage(db *BadgerDB, logger *common.Logger) *KVStorage {
	return &KVStorage{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a copy of the value stored at key.
func (s *KVStorage) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.DB().View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}

// Set stores value at key, replacing any previous value. ttl <= 0 stores
// without expiry.
func (s *KVStorage) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.db.DB().Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *KVStorage) Delete(_ context.Context, key string) error {
	err := s.db.DB().Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix and returns how many
// were removed.
func (s *KVStorage) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	wb := s.db.DB().NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete([]byte(k)); err != nil {
			return 0, fmt.Errorf("failed to delete prefix %s: %w", prefix, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("failed to delete prefix %s: %w", prefix, err)
	}

	s.logger.Debug().Str("prefix", prefix).Int("keys", len(keys)).Msg("deleted key prefix")
	return len(keys), nil
}

// Keys lists live keys starting with prefix, in byte order.
func (s *KVStorage) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.DB().View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list keys with prefix %s: %w", prefix, err)
	}
	return keys, nil
}
