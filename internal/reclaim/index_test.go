package reclaim

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisIndex(t *testing.T) (*RedisIndex, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	idx := NewRedisIndex(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = idx.Close() })
	return idx, mr
}

func exerciseIndex(t *testing.T, idx Index) {
	t.Helper()
	ctx := context.Background()
	if room, err := idx.Lookup(ctx, "1.2.3.4|alice"); err != nil || room != "" {
		t.Fatalf("empty lookup = %q err=%v", room, err)
	}
	if err := idx.Put(ctx, "1.2.3.4|alice", "M#final", time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if room, err := idx.Lookup(ctx, "1.2.3.4|alice"); err != nil || room != "M#final" {
		t.Fatalf("lookup = %q err=%v", room, err)
	}
	if err := idx.Delete(ctx, "1.2.3.4|alice", "other"); err != nil {
		t.Fatalf("delete other: %v", err)
	}
	if room, _ := idx.Lookup(ctx, "1.2.3.4|alice"); room != "M#final" {
		t.Fatalf("delete for another room removed the ticket")
	}
	if err := idx.Delete(ctx, "1.2.3.4|alice", "M#final"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if room, _ := idx.Lookup(ctx, "1.2.3.4|alice"); room != "" {
		t.Fatalf("ticket still present after delete: %q", room)
	}
}

func TestMemoryIndex(t *testing.T) {
	exerciseIndex(t, NewMemoryIndex())
}

func TestRedisIndex(t *testing.T) {
	idx, _ := newRedisIndex(t)
	exerciseIndex(t, idx)
}

func TestMemoryIndexExpiry(t *testing.T) {
	idx := NewMemoryIndex()
	now := time.Unix(1000, 0)
	idx.now = func() time.Time { return now }
	_ = idx.Put(context.Background(), "bob", "room", time.Minute)
	now = now.Add(time.Minute)
	if room, _ := idx.Lookup(context.Background(), "bob"); room != "" {
		t.Fatalf("expired ticket returned %q", room)
	}
}

func TestRedisIndexExpiry(t *testing.T) {
	idx, mr := newRedisIndex(t)
	_ = idx.Put(context.Background(), "bob", "room", time.Minute)
	mr.FastForward(time.Minute + time.Second)
	if room, _ := idx.Lookup(context.Background(), "bob"); room != "" {
		t.Fatalf("expired ticket returned %q", room)
	}
}

func TestRedisIndexPing(t *testing.T) {
	idx, mr := newRedisIndex(t)
	if err := idx.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	mr.Close()
	if err := idx.Ping(context.Background()); err == nil {
		t.Fatal("ping after shutdown succeeded")
	}
}
