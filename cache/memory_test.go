package cache

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/authsome"
	"github.com/xraph/authsome/id"
)

func TestMemoryCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))

	req := &authsome.AuthRequest{
		AccountID: id.NewAccountID(),
		Action:    "read",
		Resource:  "appointments",
	}
	res := &authsome.Resolution{Allowed: true, Decision: authsome.DecisionAllow}

	// Miss
	_, ok := c.Get(ctx, "org-1", req)
	if ok {
		t.Fatal("expected cache miss")
	}

	// Set + Hit
	c.Set(ctx, "org-1", req, res)
	got, ok := c.Get(ctx, "org-1", req)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !got.Allowed {
		t.Fatal("expected allowed")
	}
}

func TestMemoryCacheGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))

	req := &authsome.AuthRequest{
		AccountID: id.NewAccountID(),
		Action:    "read",
		Resource:  "appointments",
	}
	c.Set(ctx, "org-1", req, &authsome.Resolution{Allowed: true, Decision: authsome.DecisionAllow})

	// Callers stamp per-hit fields on the result; that must not bleed
	// into the shared entry.
	first, ok := c.Get(ctx, "org-1", req)
	if !ok {
		t.Fatal("expected cache hit")
	}
	first.EvalTimeNs = 42
	first.Allowed = false

	second, ok := c.Get(ctx, "org-1", req)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if second.EvalTimeNs != 0 || !second.Allowed {
		t.Fatalf("cached entry mutated through a returned copy: %+v", second)
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(1 * time.Millisecond))

	req := &authsome.AuthRequest{
		AccountID: id.NewAccountID(),
		Action:    "read",
		Resource:  "appointments",
	}

	c.Set(ctx, "org-1", req, &authsome.Resolution{Allowed: true})
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(ctx, "org-1", req)
	if ok {
		t.Fatal("expected cache miss after TTL expiry")
	}
}

func TestMemoryCacheInvalidateOrganisation(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	req1 := &authsome.AuthRequest{
		AccountID: id.NewAccountID(),
		Action:    "read",
		Resource:  "appointments",
	}
	req2 := &authsome.AuthRequest{
		AccountID: id.NewAccountID(),
		Action:    "write",
		Resource:  "patients",
	}

	c.Set(ctx, "org-1", req1, &authsome.Resolution{Allowed: true})
	c.Set(ctx, "org-1", req2, &authsome.Resolution{Allowed: false})
	c.Set(ctx, "org-2", req1, &authsome.Resolution{Allowed: true})

	c.InvalidateOrganisation(ctx, "org-1")

	if _, ok := c.Get(ctx, "org-1", req1); ok {
		t.Fatal("org-1 req1 should be invalidated")
	}
	if _, ok := c.Get(ctx, "org-1", req2); ok {
		t.Fatal("org-1 req2 should be invalidated")
	}
	if _, ok := c.Get(ctx, "org-2", req1); !ok {
		t.Fatal("org-2 req1 should still be cached")
	}
}

func TestMemoryCacheInvalidateAccount(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	acct1 := id.NewAccountID()
	acct2 := id.NewAccountID()
	req1 := &authsome.AuthRequest{AccountID: acct1, Action: "read", Resource: "appointments"}
	req2 := &authsome.AuthRequest{AccountID: acct2, Action: "read", Resource: "appointments"}

	c.Set(ctx, "org-1", req1, &authsome.Resolution{Allowed: true})
	c.Set(ctx, "org-1", req2, &authsome.Resolution{Allowed: true})

	c.InvalidateAccount(ctx, "org-1", acct1.String())

	if _, ok := c.Get(ctx, "org-1", req1); ok {
		t.Fatal("acct1 should be invalidated")
	}
	if _, ok := c.Get(ctx, "org-1", req2); !ok {
		t.Fatal("acct2 should still be cached")
	}
}

func TestMemoryCacheMaxSize(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithMaxSize(2))

	for i := 0; i < 5; i++ {
		req := &authsome.AuthRequest{
			AccountID: id.NewAccountID(),
			Action:    "read",
			Resource:  string(rune('a' + i)),
		}
		c.Set(ctx, "org-1", req, &authsome.Resolution{Allowed: true})
	}

	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()
	if size > 2 {
		t.Fatalf("expected max 2 entries, got %d", size)
	}
}
