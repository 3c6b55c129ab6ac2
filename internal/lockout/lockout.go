// Package lockout throttles password guessing by counting failed logins per account.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"securedocs/internal/domain"
	"securedocs/internal/logging"
)

type Lockout interface {
	// Check returns domain.ErrLockedOut while the account has too many recent failures.
	Check(ctx context.Context, account string) error
	Fail(ctx context.Context, account string) error
	Reset(ctx context.Context, account string) error
}

const keyPrefix = "securedocs:lockout:"

// RedisLockout keeps one counter per account. Every failure pushes the expiry out by window,
// so the counter only resets after window passes without a failed attempt.
type RedisLockout struct {
	rdb         redis.Cmdable
	log         logging.Logger
	maxAttempts int64
	window      time.Duration
}

func NewRedisLockout(rdb redis.Cmdable, log logging.Logger, maxAttempts int, window time.Duration) *RedisLockout {
	return &RedisLockout{
		rdb:         rdb,
		log:         log,
		maxAttempts: int64(maxAttempts),
		window:      window,
	}
}

// Redis errors are logged and treated as "not locked" so an outage cannot block every login.
func (l *RedisLockout) Check(ctx context.Context, account string) error {
	if l.maxAttempts <= 0 {
		return nil
	}
	n, err := l.rdb.Get(ctx, keyPrefix+account).Int64()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		l.log.Warn(ctx, "lockout check failed", "error", err)
		return nil
	}
	if n >= l.maxAttempts {
		return domain.ErrLockedOut
	}
	return nil
}

func (l *RedisLockout) Fail(ctx context.Context, account string) error {
	key := keyPrefix + account
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}
	return nil
}

func (l *RedisLockout) Reset(ctx context.Context, account string) error {
	if err := l.rdb.Del(ctx, keyPrefix+account).Err(); err != nil {
		return fmt.Errorf("reset failed logins: %w", err)
	}
	return nil
}

// Disabled never locks anyone out. Used when no Redis address is configured.
type Disabled struct{}

func (Disabled) Check(context.Context, string) error { return nil }
func (Disabled) Fail(context.Context, string) error  { return nil }
func (Disabled) Reset(context.Context, string) error { return nil }
