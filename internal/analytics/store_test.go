package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/bobmcallan/optiwealth-portal/internal/config"
	"github.com/bobmcallan/optiwealth-portal/internal/storage/badger"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestKV(t *testing.T) *badger.KVStorage {
	t.Helper()
	m, err := badger.NewManager(common.NewSilentLogger(), &config.BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m.KeyValueStorage()
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(newTestKV(t), "sess-1", time.Hour, common.NewSilentLogger())
}

func payload(s string) json.RawMessage { return json.RawMessage(s) }

func fixed(p json.RawMessage) Fetcher {
	return func(context.Context) (json.RawMessage, error) { return p, nil }
}

func counting(p json.RawMessage, calls *int) Fetcher {
	return func(context.Context) (json.RawMessage, error) {
		*calls++
		return p, nil
	}
}

func TestStore_GetMiss(t *testing.T) {
	s := newTestStore(t)
	misses := testutil.ToFloat64(cacheMisses)

	_, ok := s.Get(context.Background(), 7)
	if ok {
		t.Fatal("expected miss on empty cache")
	}
	if got := testutil.ToFloat64(cacheMisses); got != misses+1 {
		t.Errorf("expected miss counter to advance, got %v -> %v", misses, got)
	}
}

func TestStore_PutThenGetRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	body := payload(`{"portfolio": {"profit": 12.5},  "forecasts": {}}`)

	if _, err := s.Put(ctx, 7, body); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	entry, ok := s.Get(ctx, 7)
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if string(entry.Payload) != string(body) {
		t.Errorf("payload not byte-identical: %s", entry.Payload)
	}
	if entry.PortfolioID != 7 {
		t.Errorf("expected portfolio 7, got %d", entry.PortfolioID)
	}
	if entry.StoredAt.IsZero() {
		t.Error("expected StoredAt to be set")
	}
}

func TestStore_PutIsLastWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Put(ctx, 7, payload(`{"v":1}`))
	s.Put(ctx, 7, payload(`{"v":2}`))

	entry, ok := s.Get(ctx, 7)
	if !ok || string(entry.Payload) != `{"v":2}` {
		t.Errorf("expected second payload, got %s (ok=%v)", entry.Payload, ok)
	}
}

func TestStore_PutRejectsInvalidPayload(t *testing.T) {
	s := newTestStore(t)
	for _, p := range []json.RawMessage{nil, payload(""), payload("{not json")} {
		if _, err := s.Put(context.Background(), 1, p); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("Put(%q): expected ErrInvalidPayload, got %v", p, err)
		}
	}
}

func TestStore_InvalidateRemovesOnlyThatPortfolio(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Put(ctx, 7, payload(`{"id":7}`))
	s.Put(ctx, 8, payload(`{"id":8}`))

	if err := s.Invalidate(ctx, 7); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, ok := s.Get(ctx, 7); ok {
		t.Error("expected 7 to be gone")
	}
	if _, ok := s.Get(ctx, 8); !ok {
		t.Error("invalidating 7 must not touch 8")
	}
	if s.Generation(7) != 1 || s.Generation(8) != 0 {
		t.Errorf("unexpected generations 7=%d 8=%d", s.Generation(7), s.Generation(8))
	}
}

func TestStore_InvalidateMissingIsNoError(t *testing.T) {
	s := newTestStore(t)
	if err := s.Invalidate(context.Background(), 99); err != nil {
		t.Errorf("Invalidate on absent entry should succeed: %v", err)
	}
}

func TestStore_FetchOrUseUsesCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	calls := 0
	fetch := counting(payload(`{"a":1}`), &calls)

	first, err := s.FetchOrUse(ctx, 3, fetch)
	if err != nil {
		t.Fatalf("FetchOrUse failed: %v", err)
	}
	second, err := s.FetchOrUse(ctx, 3, fetch)
	if err != nil {
		t.Fatalf("FetchOrUse failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected one backend call, got %d", calls)
	}
	if string(first.Payload) != string(second.Payload) {
		t.Error("cached payload differs from fetched payload")
	}
}

func TestStore_FetchFailureLeavesCacheUntouched(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("analytics service unavailable")
	failures := testutil.ToFloat64(fetchFailures)

	_, err := s.FetchOrUse(ctx, 3, func(context.Context) (json.RawMessage, error) {
		return payload(`{"partial":`), boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error to surface, got %v", err)
	}
	if _, ok := s.Get(ctx, 3); ok {
		t.Error("failed fetch must not create an entry")
	}
	if testutil.ToFloat64(fetchFailures) != failures+1 {
		t.Error("expected fetch failure counter to advance")
	}

	// An existing entry also survives a failed refresh.
	s.Put(ctx, 3, payload(`{"good":true}`))
	if _, err := s.Refresh(ctx, 3, func(context.Context) (json.RawMessage, error) { return nil, boom }); err == nil {
		t.Fatal("expected refresh error")
	}
	entry, ok := s.Get(ctx, 3)
	if !ok || string(entry.Payload) != `{"good":true}` {
		t.Errorf("existing entry changed by failed refresh: %s", entry.Payload)
	}
}

func TestStore_FetchReturningGarbageIsFailure(t *testing.T) {
	s := newTestStore(t)
	_, err := s.FetchOrUse(context.Background(), 3, fixed(payload("<html>502</html>")))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	if _, ok := s.Get(context.Background(), 3); ok {
		t.Error("invalid payload was cached")
	}
}

func TestStore_RefreshAlwaysFetches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Put(ctx, 3, payload(`{"v":"old"}`))

	calls := 0
	entry, err := s.Refresh(ctx, 3, counting(payload(`{"v":"new"}`), &calls))
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if calls != 1 || string(entry.Payload) != `{"v":"new"}` {
		t.Errorf("unexpected refresh result calls=%d payload=%s", calls, entry.Payload)
	}
	cached, _ := s.Get(ctx, 3)
	if string(cached.Payload) != `{"v":"new"}` {
		t.Errorf("refresh did not store, got %s", cached.Payload)
	}
}

// A fetch that started before an invalidation returns its result but does
// not write it back.
func TestStore_InvalidateDuringFetchDiscardsResult(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	discards := testutil.ToFloat64(staleDiscards)

	var entry Entry
	var err error
	done := make(chan struct{})
	go func() {
		defer close(done)
		entry, err = s.FetchOrUse(ctx, 7, func(context.Context) (json.RawMessage, error) {
			close(started)
			<-release
			return payload(`{"holdings":3}`), nil
		})
	}()

	<-started
	if err := s.Invalidate(ctx, 7); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	close(release)
	<-done

	if err != nil {
		t.Fatalf("fetch should still succeed for the caller: %v", err)
	}
	if string(entry.Payload) != `{"holdings":3}` {
		t.Errorf("caller did not receive payload: %s", entry.Payload)
	}
	if _, ok := s.Get(ctx, 7); ok {
		t.Error("pre-invalidation result was cached")
	}
	if testutil.ToFloat64(staleDiscards) != discards+1 {
		t.Error("expected stale discard counter to advance")
	}
}

func TestStore_ConcurrentFetchesLastWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	var wg sync.WaitGroup

	for _, body := range []string{`{"n":1}`, `{"n":2}`} {
		wg.Add(1)
		go func(b string) {
			defer wg.Done()
			if _, err := s.Refresh(ctx, 5, fixed(payload(b))); err != nil {
				t.Errorf("Refresh failed: %v", err)
			}
		}(body)
	}
	wg.Wait()

	entry, ok := s.Get(ctx, 5)
	if !ok {
		t.Fatal("expected an entry")
	}
	if p := string(entry.Payload); p != `{"n":1}` && p != `{"n":2}` {
		t.Errorf("entry is a merge or corruption: %s", p)
	}
}

func TestStore_CorruptEntryIsMiss(t *testing.T) {
	kv := newTestKV(t)
	s := NewStore(kv, "sess-1", time.Hour, common.NewSilentLogger())
	ctx := context.Background()
	corrupt := testutil.ToFloat64(corruptEntries)

	if err := kv.Set(ctx, KeyPrefix("sess-1")+"7", []byte{0xc1, 0x00, 0xff}, 0); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if _, ok := s.Get(ctx, 7); ok {
		t.Fatal("corrupt entry should read as a miss")
	}
	if testutil.ToFloat64(corruptEntries) != corrupt+1 {
		t.Error("expected corrupt counter to advance")
	}
	if _, err := kv.Get(ctx, KeyPrefix("sess-1")+"7"); err == nil {
		t.Error("corrupt entry should be removed")
	}

	calls := 0
	if _, err := s.FetchOrUse(ctx, 7, counting(payload(`{}`), &calls)); err != nil || calls != 1 {
		t.Errorf("expected refetch after corrupt entry, calls=%d err=%v", calls, err)
	}
}

func TestStore_EntryUnderWrongKeyIsMiss(t *testing.T) {
	kv := newTestKV(t)
	s := NewStore(kv, "sess-1", time.Hour, common.NewSilentLogger())
	ctx := context.Background()

	raw, err := encodeEntry(Entry{PortfolioID: 8, Payload: payload(`{}`), StoredAt: time.Now()})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	kv.Set(ctx, KeyPrefix("sess-1")+"7", raw, 0)

	if _, ok := s.Get(ctx, 7); ok {
		t.Error("entry for another portfolio must not be served")
	}
}

func TestStore_SessionsAreIsolated(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()
	a := NewStore(kv, "sess-a", time.Hour, nil)
	b := NewStore(kv, "sess-b", time.Hour, nil)

	a.Put(ctx, 1, payload(`{"owner":"a"}`))
	if _, ok := b.Get(ctx, 1); ok {
		t.Error("session b sees session a's entry")
	}
	if err := b.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := a.Get(ctx, 1); !ok {
		t.Error("clearing b removed a's entry")
	}
}

func TestStore_ClearDropsEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for id := int64(1); id <= 5; id++ {
		s.Put(ctx, id, payload(`{}`))
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	for id := int64(1); id <= 5; id++ {
		if _, ok := s.Get(ctx, id); ok {
			t.Errorf("entry %d survived Clear", id)
		}
	}
}

func TestStore_ClearDuringFetchDiscardsResult(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.FetchOrUse(ctx, 4, func(context.Context) (json.RawMessage, error) {
		if err := s.Clear(ctx); err != nil {
			t.Errorf("Clear failed: %v", err)
		}
		return payload(`{}`), nil
	})
	if err != nil {
		t.Fatalf("FetchOrUse failed: %v", err)
	}
	if _, ok := s.Get(ctx, 4); ok {
		t.Error("result of a fetch that raced Clear was stored")
	}
}
