package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLeaseHeld = errors.New("AUTHORITY_LEASE_HELD")

// 只有持有者才能续约 / 释放
var (
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// AuthorityLease 世界内唯一的权威会话租约
type AuthorityLease struct {
	client *redis.Client
	key    string
	holder string
	ttl    time.Duration
	logger *slog.Logger
}

// NewAuthorityLease 创建租约
func NewAuthorityLease(client *redis.Client, world, holder string, ttl time.Duration) *AuthorityLease {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &AuthorityLease{
		client: client,
		key:    BuildAuthorityKey(world),
		holder: holder,
		ttl:    ttl,
		logger: slog.Default(),
	}
}

// Claim 抢占租约，已被其他会话持有时返回 ErrLeaseHeld
func (l *AuthorityLease) Claim(ctx context.Context) error {
	ok, err := l.client.SetNX(ctx, l.key, l.holder, l.ttl).Result()
	if err != nil {
		return err
	}
	if ok {
		l.logger.Info("Authority lease claimed", "key", l.key, "holder", l.holder)
		return nil
	}

	current, err := l.Holder(ctx)
	if err != nil {
		return err
	}
	if current == l.holder {
		return l.Refresh(ctx)
	}
	return ErrLeaseHeld
}

// Refresh 续约，租约已丢失时返回 ErrLeaseHeld
func (l *AuthorityLease) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.holder, l.ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLeaseHeld
	}
	return nil
}

// Release 释放租约
func (l *AuthorityLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.holder).Err(); err != nil {
		return err
	}
	l.logger.Info("Authority lease released", "key", l.key, "holder", l.holder)
	return nil
}

// Holder 当前持有者，无人持有时返回空串
func (l *AuthorityLease) Holder(ctx context.Context) (string, error) {
	holder, err := l.client.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return holder, err
}

// AuthorityOnline 是否有会话持有租约
func (l *AuthorityLease) AuthorityOnline(ctx context.Context) (bool, error) {
	holder, err := l.Holder(ctx)
	if err != nil {
		return false, err
	}
	return holder != "", nil
}

// Keep 周期续约直到 ctx 结束；续约失败时调用 onLost 并返回
func (l *AuthorityLease) Keep(ctx context.Context, interval time.Duration, onLost func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Warn("Authority lease lost", "key", l.key, "holder", l.holder, "error", err)
				if onLost != nil {
					onLost(err)
				}
				return
			}
		}
	}
}
