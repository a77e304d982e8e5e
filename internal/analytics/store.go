// Package analytics caches the backend's analytics report per portfolio for
// the lifetime of a browsing session.
//
// The cache is passive: reads never fetch. FetchOrUse and Refresh compose a
// read with a caller-supplied Fetcher, and only successful results are ever
// stored. Each portfolio carries an invalidation generation so a fetch that
// was started before a holding mutation cannot write its pre-mutation result
// back after the mutation invalidated the entry.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/bobmcallan/optiwealth-portal/internal/storage"
)

// ErrInvalidPayload is returned when a fetcher yields an empty or non-JSON body.
var ErrInvalidPayload = errors.New("analytics payload is empty or not JSON")

// Entry is one cached analytics report.
type Entry struct {
	PortfolioID int64
	Payload     json.RawMessage
	StoredAt    time.Time
	Generation  uint64
}

// Fetcher retrieves a fresh analytics payload from the backend.
type Fetcher func(ctx context.Context) (json.RawMessage, error)

// Store is the analytics cache of one session. All methods are safe for
// concurrent use.
type Store struct {
	kv     storage.KeyValueStorage
	prefix string
	ttl    time.Duration
	logger *common.Logger
	now    func() time.Time

	mu          sync.Mutex
	generations map[int64]uint64
	epoch       uint64
}

// NewStore creates a cache scoped to scope (the session id) inside kv.
// Entries expire after ttl; ttl <= 0 keeps them until Clear.
func NewStore(kv storage.KeyValueStorage, scope string, ttl time.Duration, logger *common.Logger) *Store {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Store{
		kv:          kv,
		prefix:      KeyPrefix(scope),
		ttl:         ttl,
		logger:      logger,
		now:         time.Now,
		generations: make(map[int64]uint64),
	}
}

// KeyPrefix is the storage prefix under which a session's entries live.
func KeyPrefix(scope string) string {
	return "analytics/" + scope + "/"
}

func (s *Store) key(id int64) string {
	return s.prefix + strconv.FormatInt(id, 10)
}

// Generation returns the current invalidation generation for id.
func (s *Store) Generation(id int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[id]
}

// Get returns the stored entry for id. A missing, expired or undecodable
// entry is a miss; undecodable entries are removed.
func (s *Store) Get(ctx context.Context, id int64) (Entry, bool) {
	raw, err := s.kv.Get(ctx, s.key(id))
	if err != nil {
		if !storage.IsNotFound(err) {
			s.logger.Warn().Int64("portfolio_id", id).Err(err).Msg("analytics cache: read failed")
		}
		cacheMisses.Inc()
		s.logger.Debug().Int64("portfolio_id", id).Msg("analytics cache: miss")
		return Entry{}, false
	}

	entry, err := decodeEntry(id, raw)
	if err != nil {
		corruptEntries.Inc()
		cacheMisses.Inc()
		s.logger.Warn().Int64("portfolio_id", id).Err(err).Msg("analytics cache: dropping undecodable entry")
		if delErr := s.kv.Delete(ctx, s.key(id)); delErr != nil {
			s.logger.Warn().Int64("portfolio_id", id).Err(delErr).Msg("analytics cache: failed to drop entry")
		}
		return Entry{}, false
	}

	cacheHits.Inc()
	s.logger.Debug().Int64("portfolio_id", id).Msg("analytics cache: hit")
	return entry, true
}

// Put stores payload for id, replacing any existing entry.
func (s *Store) Put(ctx context.Context, id int64, payload json.RawMessage) (Entry, error) {
	if err := validPayload(payload); err != nil {
		return Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(ctx, id, payload, s.generations[id])
}

func (s *Store) putLocked(ctx context.Context, id int64, payload json.RawMessage, gen uint64) (Entry, error) {
	entry := Entry{
		PortfolioID: id,
		Payload:     append(json.RawMessage(nil), payload...),
		StoredAt:    s.now(),
		Generation:  gen,
	}
	raw, err := encodeEntry(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("encode analytics entry: %w", err)
	}
	if err := s.kv.Set(ctx, s.key(id), raw, s.ttl); err != nil {
		return Entry{}, fmt.Errorf("store analytics entry: %w", err)
	}
	cachePuts.Inc()
	s.logger.Debug().Int64("portfolio_id", id).Int("bytes", len(payload)).Msg("analytics cache: put")
	return entry, nil
}

// Invalidate removes the entry for id and advances its generation, so any
// fetch already in flight for id will not be stored.
func (s *Store) Invalidate(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[id]++
	if err := s.kv.Delete(ctx, s.key(id)); err != nil {
		return fmt.Errorf("invalidate analytics entry: %w", err)
	}
	cacheInvalidations.Inc()
	s.logger.Debug().Int64("portfolio_id", id).Int64("generation", int64(s.generations[id])).Msg("analytics cache: invalidated")
	return nil
}

// FetchOrUse returns the cached entry for id, or calls fetch on a miss and
// caches its result. A failed fetch leaves the cache untouched.
func (s *Store) FetchOrUse(ctx context.Context, id int64, fetch Fetcher) (Entry, error) {
	if entry, ok := s.Get(ctx, id); ok {
		return entry, nil
	}
	return s.fetchAndStore(ctx, id, fetch)
}

// Refresh always calls fetch and caches its result.
func (s *Store) Refresh(ctx context.Context, id int64, fetch Fetcher) (Entry, error) {
	return s.fetchAndStore(ctx, id, fetch)
}

func (s *Store) fetchAndStore(ctx context.Context, id int64, fetch Fetcher) (Entry, error) {
	s.mu.Lock()
	gen, epoch := s.generations[id], s.epoch
	s.mu.Unlock()

	payload, err := fetch(ctx)
	if err == nil {
		err = validPayload(payload)
	}
	if err != nil {
		fetchFailures.Inc()
		s.logger.Debug().Int64("portfolio_id", id).Err(err).Msg("analytics cache: fetch failed")
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if current := s.generations[id]; current != gen || s.epoch != epoch {
		staleDiscards.Inc()
		s.logger.Debug().
			Int64("portfolio_id", id).
			Int64("fetched_generation", int64(gen)).
			Int64("current_generation", int64(current)).
			Msg("analytics cache: discarding result fetched before invalidation")
		return Entry{
			PortfolioID: id,
			Payload:     payload,
			StoredAt:    s.now(),
			Generation:  gen,
		}, nil
	}
	return s.putLocked(ctx, id, payload, gen)
}

// Clear drops every entry of this session. Fetches in flight when Clear runs
// are not stored.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.kv.DeletePrefix(ctx, s.prefix)
	if err != nil {
		return fmt.Errorf("clear analytics cache: %w", err)
	}
	s.epoch++
	s.logger.Debug().Str("prefix", s.prefix).Int("entries", n).Msg("analytics cache: cleared")
	return nil
}

func validPayload(payload json.RawMessage) error {
	if len(payload) == 0 || !json.Valid(payload) {
		return ErrInvalidPayload
	}
	return nil
}
