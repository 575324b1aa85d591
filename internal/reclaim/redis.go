package reclaim

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "duel:reclaim:"

// deleteIfRoom drops the key only while it still names the given room.
var deleteIfRoom = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisIndex shares tickets across server processes behind one entry point.
type RedisIndex struct {
	rdb *redis.Client
}

func NewRedisIndex(rdb *redis.Client) *RedisIndex { return &RedisIndex{rdb: rdb} }

// NewRedisIndexFromURL parses a redis:// URL and checks the server is reachable.
func NewRedisIndexFromURL(ctx context.Context, url string) (*RedisIndex, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return NewRedisIndex(rdb), nil
}

func (r *RedisIndex) key(identity string) string { return keyPrefix + identity }

func (r *RedisIndex) Put(ctx context.Context, identity, room string, ttl time.Duration) error {
	return r.rdb.Set(ctx, r.key(identity), room, ttl).Err()
}

func (r *RedisIndex) Lookup(ctx context.Context, identity string) (string, error) {
	room, err := r.rdb.Get(ctx, r.key(identity)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return room, err
}

func (r *RedisIndex) Delete(ctx context.Context, identity, room string) error {
	return deleteIfRoom.Run(ctx, r.rdb, []string{r.key(identity)}, room).Err()
}

func (r *RedisIndex) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

func (r *RedisIndex) Close() error { return r.rdb.Close() }
