package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestGetPutContext(t *testing.T) {
	c := New(8, 0)

	if _, ok := c.GetContext("alice", "climate"); ok {
		t.Error("expected miss on empty cache")
	}

	c.PutContext("alice", "climate", "context data", c.Epoch("alice"))
	got, ok := c.GetContext("alice", "climate")
	if !ok {
		t.Fatal("expected hit after put")
	}
	if got != "context data" {
		t.Errorf("context = %q, want %q", got, "context data")
	}

	// Different topic is a different key.
	if _, ok := c.GetContext("alice", "economy"); ok {
		t.Error("expected miss for different topic")
	}
}

func TestGetPutView(t *testing.T) {
	c := New(8, 0)

	c.PutView("alice", c.Epoch("alice"), []string{"a", "b"}, "topicX", int64(42), true)
	v, ok := c.GetView("alice", "topicX", int64(42), true)
	if !ok {
		t.Fatal("expected hit")
	}
	if got := v.([]string); len(got) != 2 || got[0] != "a" {
		t.Errorf("view = %v", got)
	}

	// Same owner/topic, different time filter: different entry.
	if _, ok := c.GetView("alice", "topicX", int64(43), true); ok {
		t.Error("expected miss for different time key")
	}
}

func TestLRUEviction(t *testing.T) {
	c := New(2, 0)

	c.PutContext("o", "k1", "v1", c.Epoch("o"))
	c.PutContext("o", "k2", "v2", c.Epoch("o"))

	// Touch k1 so k2 becomes the least recently used.
	if _, ok := c.GetContext("o", "k1"); !ok {
		t.Fatal("expected k1 hit")
	}

	c.PutContext("o", "k3", "v3", c.Epoch("o"))

	if _, ok := c.GetContext("o", "k2"); ok {
		t.Error("k2 should have been evicted")
	}
	if _, ok := c.GetContext("o", "k1"); !ok {
		t.Error("k1 should have survived")
	}
	if _, ok := c.GetContext("o", "k3"); !ok {
		t.Error("k3 should be present")
	}
}

func TestPutUpdatesRecency(t *testing.T) {
	c := New(2, 0)

	c.PutContext("o", "k1", "v1", c.Epoch("o"))
	c.PutContext("o", "k2", "v2", c.Epoch("o"))
	c.PutContext("o", "k1", "v1-updated", c.Epoch("o")) // re-put marks k1 most recently used
	c.PutContext("o", "k3", "v3", c.Epoch("o"))

	if _, ok := c.GetContext("o", "k2"); ok {
		t.Error("k2 should have been evicted")
	}
	got, ok := c.GetContext("o", "k1")
	if !ok || got != "v1-updated" {
		t.Errorf("k1 = %q ok=%v, want updated value present", got, ok)
	}
}

func TestInvalidateOwner(t *testing.T) {
	c := New(16, 0)

	c.PutContext("alice", "topicX", "V1", c.Epoch("alice"))
	c.PutView("alice", c.Epoch("alice"), "view1", "topicX", int64(1))
	c.PutContext("bob", "topicX", "bob's view", c.Epoch("bob"))

	if n := c.InvalidateOwner("alice"); n != 2 {
		t.Errorf("invalidated %d entries, want 2", n)
	}

	// A hit must never be served for data invalidated by a write.
	if _, ok := c.GetContext("alice", "topicX"); ok {
		t.Error("alice context survived invalidation")
	}
	if _, ok := c.GetView("alice", "topicX", int64(1)); ok {
		t.Error("alice view survived invalidation")
	}

	// Other owners are untouched.
	if _, ok := c.GetContext("bob", "topicX"); !ok {
		t.Error("bob's entry should survive alice's invalidation")
	}
}

func TestStalePutRejected(t *testing.T) {
	c := New(16, 0)

	// A reader samples the epoch, then a write invalidates the owner
	// before the reader finishes computing. The late put must not land.
	epoch := c.Epoch("alice")
	c.InvalidateOwner("alice")

	c.PutContext("alice", "topicX", "computed before the write", epoch)
	if _, ok := c.GetContext("alice", "topicX"); ok {
		t.Error("context computed before invalidation was admitted")
	}

	c.PutView("alice", epoch, []string{"old"}, "topicX", int64(1))
	if _, ok := c.GetView("alice", "topicX", int64(1)); ok {
		t.Error("view computed before invalidation was admitted")
	}

	// A put with the current epoch lands normally.
	c.PutContext("alice", "topicX", "fresh", c.Epoch("alice"))
	if got, ok := c.GetContext("alice", "topicX"); !ok || got != "fresh" {
		t.Errorf("fresh put: got %q ok=%v", got, ok)
	}
}

func TestInvalidateEmptyOwnerBumpsEpoch(t *testing.T) {
	c := New(16, 0)

	// An invalidation with no cached entries still advances the epoch,
	// so an in-flight put for that owner is caught.
	epoch := c.Epoch("carol")
	if n := c.InvalidateOwner("carol"); n != 0 {
		t.Fatalf("invalidated %d entries, want 0", n)
	}
	if c.Epoch("carol") == epoch {
		t.Error("epoch did not advance on empty invalidation")
	}
}

func TestClearBumpsEpochs(t *testing.T) {
	c := New(16, 0)

	c.PutContext("alice", "topicX", "v", c.Epoch("alice"))
	epoch := c.Epoch("alice")
	c.Clear()

	c.PutContext("alice", "topicX", "stale", epoch)
	if _, ok := c.GetContext("alice", "topicX"); ok {
		t.Error("put with pre-clear epoch was admitted")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(8, time.Minute)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	c.PutContext("o", "k", "v", c.Epoch("o"))
	if _, ok := c.GetContext("o", "k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	now = base.Add(2 * time.Minute)
	if _, ok := c.GetContext("o", "k"); ok {
		t.Error("expected miss after TTL expiry")
	}

	// The expired entry is gone, not hidden.
	if st := c.Stats(); st.Size != 0 {
		t.Errorf("size = %d after expiry, want 0", st.Size)
	}
}

func TestStats(t *testing.T) {
	c := New(4, 0)

	c.GetContext("o", "k") // miss
	c.PutContext("o", "k", "v", c.Epoch("o"))
	c.GetContext("o", "k") // hit

	st := c.Stats()
	if st.Hits != 1 {
		t.Errorf("hits = %d, want 1", st.Hits)
	}
	if st.Misses != 1 {
		t.Errorf("misses = %d, want 1", st.Misses)
	}
	if st.Size != 1 || st.Capacity != 4 {
		t.Errorf("size/capacity = %d/%d, want 1/4", st.Size, st.Capacity)
	}
}

func TestDisabledCache(t *testing.T) {
	c := New(0, 0)

	c.PutContext("o", "k", "v", c.Epoch("o"))
	if _, ok := c.GetContext("o", "k"); ok {
		t.Error("disabled cache must always miss")
	}
	if st := c.Stats(); st.Size != 0 {
		t.Errorf("disabled cache size = %d, want 0", st.Size)
	}
}

func TestClear(t *testing.T) {
	c := New(4, 0)
	c.PutContext("o", "k", "v", c.Epoch("o"))
	c.GetContext("o", "k")
	c.Clear()

	st := c.Stats()
	if st.Size != 0 || st.Hits != 0 || st.Misses != 0 {
		t.Errorf("after clear: %+v, want zeroed", st)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(32, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			owner := fmt.Sprintf("owner-%d", n%4)
			for j := 0; j < 200; j++ {
				topic := fmt.Sprintf("t-%d", j%10)
				c.PutContext(owner, topic, "v", c.Epoch(owner))
				c.GetContext(owner, topic)
				if j%50 == 0 {
					c.InvalidateOwner(owner)
				}
			}
		}(i)
	}
	wg.Wait()

	if st := c.Stats(); st.Size > 32 {
		t.Errorf("size = %d exceeds capacity 32", st.Size)
	}
}
