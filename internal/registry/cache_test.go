package registry

import (
	"fmt"
	"sync"
	"testing"

	"toolforge/internal/primitive"
)

func cachePrimitive(id, name string) *primitive.Primitive {
	return &primitive.Primitive{ID: id, Name: name, Enabled: true, Version: 1}
}

func TestCachePutGetEvict(t *testing.T) {
	c := NewMountCache()

	p := cachePrimitive("id-1", "echo")
	c.Put(p)

	got, ok := c.Get("id-1")
	if !ok || got.Primitive.Name != "echo" {
		t.Fatalf("Get failed: %+v ok=%v", got, ok)
	}
	if got.MountedAt.IsZero() {
		t.Error("MountedAt not set")
	}

	byName, ok := c.GetByName("echo")
	if !ok || byName.Primitive.ID != "id-1" {
		t.Errorf("GetByName failed: %+v ok=%v", byName, ok)
	}

	c.Evict("id-1")
	if _, ok := c.Get("id-1"); ok {
		t.Error("Entry survived eviction")
	}
	// Idempotent
	c.Evict("id-1")
	if c.Count() != 0 {
		t.Errorf("Expected empty cache, got %d", c.Count())
	}
}

func TestCachePutPreservesCounters(t *testing.T) {
	c := NewMountCache()

	c.Put(cachePrimitive("id-1", "echo"))
	first, _ := c.Get("id-1")

	c.RecordInvocation("id-1")
	c.RecordInvocation("id-1")

	// Replacing the definition is the same mount with a newer version.
	v2 := cachePrimitive("id-1", "echo")
	v2.Version = 2
	c.Put(v2)

	got, ok := c.Get("id-1")
	if !ok {
		t.Fatal("Entry missing after replace")
	}
	if got.Primitive.Version != 2 {
		t.Errorf("Definition not replaced: version %d", got.Primitive.Version)
	}
	if got.InvocationCount != 2 {
		t.Errorf("Counters reset on replace: %d", got.InvocationCount)
	}
	if !got.MountedAt.Equal(first.MountedAt) {
		t.Error("Mount time reset on replace")
	}
	if got.LastInvoked == nil {
		t.Error("LastInvoked lost on replace")
	}
}

func TestCacheRebuildDiscardsCounters(t *testing.T) {
	c := NewMountCache()

	c.Put(cachePrimitive("id-1", "echo"))
	c.RecordInvocation("id-1")

	c.Rebuild([]*primitive.Primitive{
		cachePrimitive("id-1", "echo"),
		cachePrimitive("id-2", "sum"),
	})

	if c.Count() != 2 {
		t.Fatalf("Expected 2 entries, got %d", c.Count())
	}
	got, _ := c.Get("id-1")
	if got.InvocationCount != 0 {
		t.Errorf("Rebuild kept stale counters: %d", got.InvocationCount)
	}
}

func TestCacheRecordInvocationMissIgnored(t *testing.T) {
	c := NewMountCache()
	// Dismounted mid-flight; nothing to record against.
	c.RecordInvocation("ghost")
	if c.Count() != 0 {
		t.Error("RecordInvocation created an entry")
	}
}

func TestCacheSnapshotsAreCopies(t *testing.T) {
	c := NewMountCache()
	c.Put(cachePrimitive("id-1", "echo"))

	got, _ := c.Get("id-1")
	got.InvocationCount = 99

	again, _ := c.Get("id-1")
	if again.InvocationCount != 0 {
		t.Error("Snapshot mutation leaked into the cache")
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewMountCache()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("id-%d", n)
			for j := 0; j < 100; j++ {
				c.Put(cachePrimitive(id, id))
				c.RecordInvocation(id)
				c.Get(id)
				c.All()
				if j%10 == 9 {
					c.Evict(id)
				}
			}
		}(i)
	}
	wg.Wait()
}
