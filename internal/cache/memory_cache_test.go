package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheExpiresEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "catalog:categories", []string{"Makeup"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got []string
	found, err := c.Get(ctx, "catalog:categories", &got)
	if err != nil || !found {
		t.Fatalf("expected cached value, found=%v err=%v", found, err)
	}
	if len(got) != 1 || got[0] != "Makeup" {
		t.Fatalf("unexpected cached value: %v", got)
	}

	now = now.Add(2 * time.Minute)
	found, err = c.Get(ctx, "catalog:categories", &got)
	if err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if found {
		t.Fatalf("expected entry to expire")
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	_ = c.Set(ctx, "a", 1, 0)
	_ = c.Set(ctx, "b", 2, 0)

	if err := c.Delete(ctx, "a", "missing"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var v int
	if found, _ := c.Get(ctx, "a", &v); found {
		t.Fatalf("expected key a to be deleted")
	}
	if found, _ := c.Get(ctx, "b", &v); !found || v != 2 {
		t.Fatalf("expected key b to survive, found=%v v=%d", found, v)
	}
}

func TestNoopCacheNeverHits(t *testing.T) {
	var c JSONCache = NoopCache{}
	_ = c.Set(context.Background(), "k", "v", time.Minute)
	var v string
	found, err := c.Get(context.Background(), "k", &v)
	if err != nil || found {
		t.Fatalf("expected noop miss, found=%v err=%v", found, err)
	}
}
