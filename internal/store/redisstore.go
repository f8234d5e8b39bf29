package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/mavelar/chainchess/internal/room"
)

// redisstore persists one JSON snapshot per room under room:<id>. Keys carry
// no TTL: a started room survives indefinitely for later resumption and is
// removed only by an explicit Delete.
type redisstore struct {
	rdb *redis.Client
}

// NewRedis connects to redisURL (redis:// or rediss://) and pings before
// returning.
func NewRedis(ctx context.Context, redisURL string) (RoomStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis url required")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisstore{rdb: rdb}, nil
}

// NewRedisWithClient wraps an existing client; used by tests.
func NewRedisWithClient(rdb *redis.Client) RoomStore { return &redisstore{rdb: rdb} }

func roomKey(id string) string { return "room:" + strings.TrimSpace(id) }

func (s *redisstore) Get(ctx context.Context, id string) (*room.Snapshot, error) {
	raw, err := s.rdb.Get(ctx, roomKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap room.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return &snap, nil
}

func (s *redisstore) Save(ctx context.Context, snap *room.Snapshot) error {
	if snap == nil || snap.ID == "" {
		return fmt.Errorf("invalid snapshot")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.ID, err)
	}
	return s.rdb.Set(ctx, roomKey(snap.ID), raw, 0).Err()
}

func (s *redisstore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, roomKey(id)).Err()
}

func (s *redisstore) Create(ctx context.Context, snap *room.Snapshot) error {
	return s.Save(ctx, snap)
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
