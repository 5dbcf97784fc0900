package link

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisIncrScript admits a message only while the pending count is below
// capacity. The check and increment are atomic inside Redis, so concurrent
// senders across processes cannot overshoot the bound.
// KEYS[1] = pending key, ARGV[1] = capacity
var redisIncrScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= tonumber(ARGV[1]) then
    return {0, current}
end
current = redis.call("INCR", KEYS[1])
return {1, current}
`)

// redisDecrScript decrements with a floor at zero.
// KEYS[1] = pending key
var redisDecrScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current <= 0 then
    redis.call("SET", KEYS[1], 0)
    return 0
end
return redis.call("DECR", KEYS[1])
`)

// RedisPendingStore implements PendingStore on Redis so multiple fabric
// processes share one backpressure view per receiver.
type RedisPendingStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisPendingStore creates a store backed by Redis.
func NewRedisPendingStore(addr, password string, db int) *RedisPendingStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisPendingStore{client: rdb, keyPrefix: "nlpc:pending:"}
}

// NewRedisPendingStoreFromClient wraps an existing client (for tests).
func NewRedisPendingStoreFromClient(client *redis.Client) *RedisPendingStore {
	return &RedisPendingStore{client: client, keyPrefix: "nlpc:pending:"}
}

func (r *RedisPendingStore) key(receiverID string) string {
	return r.keyPrefix + receiverID
}

// Incr implements PendingStore.
func (r *RedisPendingStore) Incr(ctx context.Context, receiverID string, capacity int) (bool, error) {
	res, err := redisIncrScript.Run(ctx, r.client, []string{r.key(receiverID)}, capacity).Result()
	if err != nil {
		return false, fmt.Errorf("redis pending incr: %w", err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return false, fmt.Errorf("redis pending incr: unexpected reply %v", res)
	}
	admitted, _ := vals[0].(int64)
	return admitted == 1, nil
}

// Decr implements PendingStore.
func (r *RedisPendingStore) Decr(ctx context.Context, receiverID string) (int, error) {
	res, err := redisDecrScript.Run(ctx, r.client, []string{r.key(receiverID)}).Int()
	if err != nil {
		return 0, fmt.Errorf("redis pending decr: %w", err)
	}
	return res, nil
}

// Count implements PendingStore.
func (r *RedisPendingStore) Count(ctx context.Context, receiverID string) (int, error) {
	res, err := r.client.Get(ctx, r.key(receiverID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis pending count: %w", err)
	}
	return res, nil
}
