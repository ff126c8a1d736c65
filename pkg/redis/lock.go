package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockNotAcquired is returned when another holder owns the lock.
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld is returned when releasing or extending an expired lock.
	ErrLockNotHeld = errors.New("lock not held")
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Lock is a held distributed lock.
type Lock struct {
	client *Client
	key    string
	value  string
	ttl    time.Duration
}

// Locker hands out SET NX locks under a key prefix.
type Locker struct {
	client    *Client
	keyPrefix string
}

func NewLocker(client *Client, keyPrefix string) *Locker {
	if keyPrefix == "" {
		keyPrefix = "clover:lock:"
	}
	return &Locker{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Acquire takes the lock or returns ErrLockNotAcquired.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	lockKey := l.keyPrefix + key
	lockValue := uuid.New().String()

	ok, err := l.client.rdb.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	l.client.logger.WithContext(ctx).Debugf("Acquired lock: %s", lockKey)

	return &Lock{
		client: l.client,
		key:    lockKey,
		value:  lockValue,
		ttl:    ttl,
	}, nil
}

// Release deletes the lock if this holder still owns it.
func (lock *Lock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, lock.client.rdb, []string{lock.key}, lock.value).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}

	lock.client.logger.WithContext(ctx).Debugf("Released lock: %s", lock.key)
	return nil
}

// Extend resets the lock's TTL if this holder still owns it.
func (lock *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := extendScript.Run(ctx, lock.client.rdb, []string{lock.key}, lock.value, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}

	lock.ttl = ttl
	return nil
}

// WithLock runs fn while holding key. The lock is extended at half its TTL
// until fn returns, so runs longer than ttl keep it.
func (l *Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	lock, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go lock.keepAlive(ctx, done)

	defer func() {
		close(done)
		// release on a fresh context so a cancelled run still frees the lock
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			l.client.logger.WithContext(ctx).WithError(err).WithField("lock", lock.key).Warn("Failed to release lock")
		}
	}()

	return fn(ctx)
}

func (lock *Lock) keepAlive(ctx context.Context, done <-chan struct{}) {
	interval := lock.ttl / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lock.Extend(ctx, lock.ttl); err != nil {
				lock.client.logger.WithContext(ctx).WithError(err).WithField("lock", lock.key).Warn("Failed to extend lock")
				return
			}
		}
	}
}
