package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestCache(t *testing.T) (*AvatarCache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	c, err := NewAvatarCache("redis://"+s.Addr(), 10*time.Minute)
	if err != nil {
		t.Fatalf("failed to create avatar cache: %v", err)
	}
	return c, s
}

func TestNewAvatarCache(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSetAndGetURL(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	key := "profile_pictures/user-1_1700000000.jpg"
	url := "https://assets.example.com/presigned/abc"

	if err := c.SetURL(ctx, key, url); err != nil {
		t.Fatalf("SetURL failed: %v", err)
	}

	got, ok := c.GetURL(ctx, key)
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got != url {
		t.Fatalf("expected %q, got %q", url, got)
	}
}

func TestGetURLMiss(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	if _, ok := c.GetURL(context.Background(), "missing-key"); ok {
		t.Fatalf("expected cache miss")
	}
}

func TestURLExpires(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	if err := c.SetURL(ctx, "key", "url"); err != nil {
		t.Fatalf("SetURL failed: %v", err)
	}

	s.FastForward(11 * time.Minute)

	if _, ok := c.GetURL(ctx, "key"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestInvalidate(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	if err := c.SetURL(ctx, "key", "url"); err != nil {
		t.Fatalf("SetURL failed: %v", err)
	}
	if err := c.Invalidate(ctx, "key"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, ok := c.GetURL(ctx, "key"); ok {
		t.Fatalf("expected entry to be gone after Invalidate")
	}
}
