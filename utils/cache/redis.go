package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLocked is returned when another run already holds the lock
	ErrLocked = errors.New("run lock held by another process")
)

// DefaultRunLockKey guards scheduled and manual runs against overlapping
const DefaultRunLockKey = "ktu-notes-scraper:run-lock"

// Locker hands out a single named lock. The returned release func is safe to
// call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another process is never released by us
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCache wraps the redis client for the run lock
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisCache{
		client: client,
	}, nil
}

// Acquire takes the lock with SETNX. The TTL bounds how long a crashed
// process can keep others out.
func (r *RedisCache) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			releaseScript.Run(ctx, r.client, []string{key}, token)
		})
	}, nil
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// LocalLocker is an in-process Locker used when no Redis is configured
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time)}
}

// Acquire takes the lock unless another holder's TTL has not run out yet
func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return nil, ErrLocked
	}
	expires := now.Add(ttl)
	l.held[key] = expires

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key].Equal(expires) {
				delete(l.held, key)
			}
		})
	}, nil
}
