package cache

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"
)

func TestResponseCache_GetSet(t *testing.T) {
	c := New(5*time.Second, 100)

	c.Set("tok-1", "/api/portfolios", Response{StatusCode: http.StatusOK, Body: []byte(`[{"id":1}]`)})

	got, ok := c.Get("tok-1", "/api/portfolios")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", got.StatusCode)
	}
	if string(got.Body) != `[{"id":1}]` {
		t.Errorf("unexpected body: %s", got.Body)
	}
}

func TestResponseCache_Miss(t *testing.T) {
	c := New(5*time.Second, 100)

	if _, ok := c.Get("tok-1", "/nonexistent"); ok {
		t.Error("expected cache miss for nonexistent key")
	}
}

func TestResponseCache_TTLExpiration(t *testing.T) {
	c := New(time.Minute, 100)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("tok-1", "/api/top-picks", Response{StatusCode: http.StatusOK, Body: []byte("data")})
	if _, ok := c.Get("tok-1", "/api/top-picks"); !ok {
		t.Fatal("expected cache hit before expiry")
	}

	now = now.Add(61 * time.Second)
	if _, ok := c.Get("tok-1", "/api/top-picks"); ok {
		t.Error("expected cache miss after expiry")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be removed lazily, len=%d", c.Len())
	}
}

func TestResponseCache_ZeroTTLDisables(t *testing.T) {
	c := New(0, 100)
	c.Set("tok-1", "/api/portfolios", Response{StatusCode: http.StatusOK})
	if _, ok := c.Get("tok-1", "/api/portfolios"); ok {
		t.Error("zero TTL cache must not store")
	}

	var nilCache *ResponseCache
	nilCache.Set("tok", "/p", Response{})
	if _, ok := nilCache.Get("tok", "/p"); ok {
		t.Error("nil cache must miss")
	}
	if nilCache.InvalidatePrefix("tok", "/") != 0 {
		t.Error("nil cache invalidates nothing")
	}
}

func TestResponseCache_InvalidatePrefix(t *testing.T) {
	c := New(5*time.Second, 100)
	resp := Response{StatusCode: http.StatusOK, Body: []byte("x")}

	c.Set("tok-1", "/api/portfolios", resp)
	c.Set("tok-1", "/api/portfolios/7", resp)
	c.Set("tok-1", "/api/portfolios/7/holdings", resp)
	c.Set("tok-1", "/api/top-picks", resp)

	if n := c.InvalidatePrefix("tok-1", "/api/portfolios/7"); n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}
	if _, ok := c.Get("tok-1", "/api/portfolios/7/holdings"); ok {
		t.Error("holdings of 7 should be invalidated")
	}
	if _, ok := c.Get("tok-1", "/api/portfolios"); !ok {
		t.Error("portfolio list should survive a narrower prefix")
	}
	if _, ok := c.Get("tok-1", "/api/top-picks"); !ok {
		t.Error("unrelated path should survive")
	}
}

func TestResponseCache_ScopesIsolated(t *testing.T) {
	c := New(5*time.Second, 100)

	c.Set("tok-a", "/api/portfolios", Response{StatusCode: 200, Body: []byte("a")})
	c.Set("tok-b", "/api/portfolios", Response{StatusCode: 200, Body: []byte("b")})

	got, _ := c.Get("tok-b", "/api/portfolios")
	if string(got.Body) != "b" {
		t.Errorf("scope b read %q", got.Body)
	}

	c.InvalidateScope("tok-a")
	if _, ok := c.Get("tok-a", "/api/portfolios"); ok {
		t.Error("scope a should be empty")
	}
	if _, ok := c.Get("tok-b", "/api/portfolios"); !ok {
		t.Error("invalidating a must not touch b")
	}
}

func TestResponseCache_DelimiterCollision(t *testing.T) {
	c := New(5*time.Second, 100)
	c.Set("tok", "a/api", Response{Body: []byte("1")})
	if _, ok := c.Get("toka", "/api"); ok {
		t.Error("distinct scope/path pairs collided")
	}
}

func TestResponseCache_MaxEntries(t *testing.T) {
	c := New(5*time.Second, 3)

	for i := 0; i < 3; i++ {
		c.Set("tok", fmt.Sprintf("/p/%d", i), Response{StatusCode: 200})
	}
	c.Set("tok", "/p/3", Response{StatusCode: 200})

	if c.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", c.Len())
	}
	if _, ok := c.Get("tok", "/p/0"); ok {
		t.Error("oldest entry should be evicted")
	}
	if _, ok := c.Get("tok", "/p/3"); !ok {
		t.Error("newest entry should be present")
	}
}

func TestResponseCache_OverwriteExistingKey(t *testing.T) {
	c := New(5*time.Second, 2)

	c.Set("tok", "/p", Response{Body: []byte("old")})
	c.Set("tok", "/q", Response{Body: []byte("q")})
	c.Set("tok", "/p", Response{Body: []byte("new")})

	got, _ := c.Get("tok", "/p")
	if string(got.Body) != "new" {
		t.Errorf("expected overwrite, got %s", got.Body)
	}
	if _, ok := c.Get("tok", "/q"); !ok {
		t.Error("overwrite must not evict")
	}
}

func TestResponseCache_BodiesAreCopied(t *testing.T) {
	c := New(5*time.Second, 10)
	body := []byte("abc")
	c.Set("tok", "/p", Response{Body: body})
	body[0] = 'z'

	got, _ := c.Get("tok", "/p")
	got.Body[1] = 'z'

	again, _ := c.Get("tok", "/p")
	if string(again.Body) != "abc" {
		t.Errorf("cached body was aliased: %s", again.Body)
	}
}

func TestResponseCache_ThreadSafety(t *testing.T) {
	c := New(time.Second, 50)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			scope := fmt.Sprintf("tok-%d", n%4)
			for j := 0; j < 100; j++ {
				path := fmt.Sprintf("/api/portfolios/%d", j%10)
				c.Set(scope, path, Response{StatusCode: 200, Body: []byte(path)})
				if got, ok := c.Get(scope, path); ok && string(got.Body) != path {
					t.Errorf("read %q for %q", got.Body, path)
				}
				if j%25 == 0 {
					c.InvalidatePrefix(scope, "/api/portfolios")
				}
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 50 {
		t.Errorf("cache exceeded capacity: %d", c.Len())
	}
}
