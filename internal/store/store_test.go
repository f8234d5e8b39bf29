package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mavelar/chainchess/internal/room"
)

func testSnapshot(id string) *room.Snapshot {
	r := room.New(id, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", room.ClockConfig{InitialMs: 300_000, IncrementMs: 5_000})
	r.Black = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	r.StartClock(time.Now())
	return r.Snapshot()
}

func newRedisStore(t *testing.T) RoomStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func runStoreTests(t *testing.T, s RoomStore) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Get(ctx, "NOPE")
	if err != nil || got != nil {
		t.Fatalf("absent id should yield (nil, nil), got %v %v", got, err)
	}

	snap := testSnapshot("ROOM01")
	if err := s.Create(ctx, snap); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err = s.Get(ctx, "ROOM01")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.ID != "ROOM01" || got.White != snap.White {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	got.GameNo = 2
	if err := s.Save(ctx, got); err != nil {
		t.Fatalf("Save: %v", err)
	}
	again, err := s.Get(ctx, "ROOM01")
	if err != nil || again == nil || again.GameNo != 2 {
		t.Fatalf("save did not overwrite: %+v %v", again, err)
	}

	if err := s.Delete(ctx, "ROOM01"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err = s.Get(ctx, "ROOM01")
	if err != nil || got != nil {
		t.Fatalf("deleted id should yield (nil, nil), got %v %v", got, err)
	}
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, NewMemory())
}

func TestRedisStore(t *testing.T) {
	runStoreTests(t, newRedisStore(t))
}

func TestNewRedisPingFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedis(ctx, "redis://127.0.0.1:1/0"); err == nil {
		t.Fatalf("expected ping failure")
	}
	if _, err := NewRedis(ctx, "http://nope"); err == nil {
		t.Fatalf("expected scheme rejection")
	}
}

func TestRedisStoreConnectsByURL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	s, err := NewRedis(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	runStoreTests(t, s)
}
