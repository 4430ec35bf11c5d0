package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrAddressTaken means another live session already holds the address.
var ErrAddressTaken = errors.New("ws: address already claimed")

// AddressRegistry reserves relay addresses. With a single relay instance
// the in-memory registry suffices; behind a load balancer the Redis one
// makes room codes unique across instances.
type AddressRegistry interface {
	Claim(ctx context.Context, addr string) error
	Release(ctx context.Context, addr string) error
}

type MemoryRegistry struct {
	mu    sync.Mutex
	addrs map[string]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{addrs: make(map[string]struct{})}
}

func (r *MemoryRegistry) Claim(_ context.Context, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.addrs[addr]; ok {
		return ErrAddressTaken
	}
	r.addrs[addr] = struct{}{}
	return nil
}

func (r *MemoryRegistry) Release(_ context.Context, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.addrs, addr)
	return nil
}

// claimTTL bounds how long a crashed relay instance can squat on an
// address before the code becomes reusable.
const claimTTL = 24 * time.Hour

type RedisRegistry struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisRegistry(rdb *redis.Client) *RedisRegistry {
	return &RedisRegistry{rdb: rdb, prefix: "relay:addr:"}
}

func (r *RedisRegistry) Claim(ctx context.Context, addr string) error {
	ok, err := r.rdb.SetNX(ctx, r.prefix+addr, 1, claimTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAddressTaken
	}
	return nil
}

func (r *RedisRegistry) Release(ctx context.Context, addr string) error {
	return r.rdb.Del(ctx, r.prefix+addr).Err()
}
