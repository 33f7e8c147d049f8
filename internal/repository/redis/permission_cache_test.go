package redis

import (
	"context"
	"testing"
	"time"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
)

func TestPermissionCache_SetAndGet(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewPermissionCache(client, "perms", 5*time.Minute)
	ctx := context.Background()

	set := domain.PermissionSet{"games:manage": true, "reports:read": false}
	stored, err := cache.Set(ctx, "EDITOR", 0, set)
	if err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if !stored {
		t.Fatal("expected set to be stored at generation 0")
	}

	got, ok, err := cache.Get(ctx, "EDITOR")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !got.Allows("games:manage") || got.Allows("reports:read") || len(got) != 2 {
		t.Fatalf("unexpected set %v", got)
	}

	remaining := server.TTL("perms:EDITOR")
	if remaining <= 0 || remaining > 5*time.Minute {
		t.Fatalf("expected ttl within (0, 5m], got %v", remaining)
	}
}

func TestPermissionCache_Miss(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewPermissionCache(client, "", time.Minute)

	set, ok, err := cache.Get(context.Background(), "GHOST")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if ok || set != nil {
		t.Fatalf("expected miss, got ok=%v set=%v", ok, set)
	}
}

func TestPermissionCache_EmptySetIsAHit(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewPermissionCache(client, "perms", 0)
	ctx := context.Background()

	if _, err := cache.Set(ctx, "NOTHING", 0, nil); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	set, ok, err := cache.Get(ctx, "NOTHING")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !ok || set == nil || len(set) != 0 {
		t.Fatalf("expected empty hit, got ok=%v set=%v", ok, set)
	}
}

func TestPermissionCache_Invalidate(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewPermissionCache(client, "perms", time.Minute)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		if _, err := cache.Set(ctx, name, 0, domain.PermissionSet{"x": true}); err != nil {
			t.Fatalf("Set(%s) returned error: %v", name, err)
		}
	}

	if err := cache.Invalidate(ctx, "A", "B", "MISSING"); err != nil {
		t.Fatalf("Invalidate returned error: %v", err)
	}

	if server.Exists("perms:A") || server.Exists("perms:B") {
		t.Fatal("expected invalidated keys to be removed")
	}
	if !server.Exists("perms:C") {
		t.Fatal("expected untouched key to remain")
	}

	generation, err := cache.Generation(ctx, "A")
	if err != nil {
		t.Fatalf("Generation returned error: %v", err)
	}
	if generation != 1 {
		t.Fatalf("expected generation 1 after one invalidation, got %d", generation)
	}

	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("empty Invalidate returned error: %v", err)
	}
}

func TestPermissionCache_InvalidateFailure(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewPermissionCache(client, "perms", time.Minute)

	server.Close()

	if err := cache.Invalidate(context.Background(), "A"); err == nil {
		t.Fatal("expected error when redis is unavailable")
	}
}

func TestPermissionCache_SetDiscardsFillAfterInvalidate(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewPermissionCache(client, "perms", time.Minute)
	ctx := context.Background()

	generation, err := cache.Generation(ctx, "VIP_HOST")
	if err != nil {
		t.Fatalf("Generation returned error: %v", err)
	}

	// A writer commits and invalidates while the fill is still loading.
	if err := cache.Invalidate(ctx, "VIP_HOST"); err != nil {
		t.Fatalf("Invalidate returned error: %v", err)
	}

	stored, err := cache.Set(ctx, "VIP_HOST", generation, domain.PermissionSet{"vip:manage": true})
	if err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if stored {
		t.Fatal("expected stale fill to be discarded")
	}
	if server.Exists("perms:VIP_HOST") {
		t.Fatal("expected no cached entry after discarded fill")
	}

	current, err := cache.Generation(ctx, "VIP_HOST")
	if err != nil {
		t.Fatalf("Generation returned error: %v", err)
	}
	stored, err = cache.Set(ctx, "VIP_HOST", current, domain.PermissionSet{"vip:manage": false})
	if err != nil || !stored {
		t.Fatalf("expected fill at current generation to be stored, stored=%v err=%v", stored, err)
	}
}
