package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/storykeep-backend/internal/data/repos/testutil"
)

func TestSuggestionKey(t *testing.T) {
	p := uuid.MustParse("7b0c1f4e-55a1-4c1b-9a43-0f1e2d3c4b5a")
	got := suggestionKey(p, "gar", 5)
	want := "storykeep:suggest:7b0c1f4e-55a1-4c1b-9a43-0f1e2d3c4b5a:5:gar"
	if got != want {
		t.Fatalf("suggestionKey = %q, want %q", got, want)
	}
}

func TestNoopSuggestionCache(t *testing.T) {
	c := NewNoopSuggestionCache()
	c.Set(context.Background(), uuid.New(), "gar", 5, []string{"garden"})
	if _, ok := c.Get(context.Background(), uuid.New(), "gar", 5); ok {
		t.Fatalf("noop cache returned a hit")
	}
	if _, ok := NewRedisSuggestionCache(testutil.Logger(t), nil, time.Minute).(noopSuggestionCache); !ok {
		t.Fatalf("nil redis client should yield the noop cache")
	}
}

func TestRedisSuggestionCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis ping: %v", err)
	}

	c := NewRedisSuggestionCache(testutil.Logger(t), rdb, time.Minute)
	p, other := uuid.New(), uuid.New()
	c.Set(ctx, p, "gar", 5, []string{"garden", "gardener"})
	c.Set(ctx, other, "gar", 5, []string{"garage"})

	got, ok := c.Get(ctx, p, "gar", 5)
	if !ok || len(got) != 2 || got[0] != "garden" {
		t.Fatalf("Get = %v, %v", got, ok)
	}
	if _, ok := c.Get(ctx, p, "gar", 6); ok {
		t.Fatalf("limit is part of the key")
	}

	c.InvalidateProject(ctx, p)
	if _, ok := c.Get(ctx, p, "gar", 5); ok {
		t.Fatalf("entry survived invalidation")
	}
	if _, ok := c.Get(ctx, other, "gar", 5); !ok {
		t.Fatalf("invalidation crossed projects")
	}
	c.InvalidateProject(ctx, other)
}
