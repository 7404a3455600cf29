package accounts

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const systemWalletPrefix = "ledger:system-wallet:v1:"

// RedisResolver is a read-through cache in front of the wallet directory,
// shared between API replicas. Redis failures fall back to the directory.
type RedisResolver struct {
	cache  *redis.Client
	next   SystemWalletResolver
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisResolver caches lookups made against next for ttl.
func NewRedisResolver(cache *redis.Client, next SystemWalletResolver, ttl time.Duration, logger *slog.Logger) *RedisResolver {
	return &RedisResolver{cache: cache, next: next, ttl: ttl, logger: logger}
}

func (r *RedisResolver) ResolveSystemWallet(ctx context.Context, role Role) (string, error) {
	key := systemWalletPrefix + string(role)

	walletID, err := r.cache.Get(ctx, key).Result()
	if err == nil {
		return walletID, nil
	}
	if !errors.Is(err, redis.Nil) {
		r.logger.Warn("system wallet cache lookup failed", slog.String("role", string(role)), slog.Any("error", err))
	}

	walletID, err = r.next.ResolveSystemWallet(ctx, role)
	if err != nil {
		return "", err
	}

	if err := r.cache.Set(ctx, key, walletID, r.ttl).Err(); err != nil {
		r.logger.Warn("system wallet cache write failed", slog.String("role", string(role)), slog.Any("error", err))
	}
	return walletID, nil
}

// Forget removes every cached role.
func (r *RedisResolver) Forget(ctx context.Context) error {
	keys := make([]string, 0, len(Roles))
	for _, role := range Roles {
		keys = append(keys, systemWalletPrefix+string(role))
	}
	return r.cache.Del(ctx, keys...).Err()
}
