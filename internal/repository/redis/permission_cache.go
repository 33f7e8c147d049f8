package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
	"github.com/gtaroom/GTA-GAME-sub003/internal/core/port"
)

const defaultPermissionCachePrefix = "rbac:perms"

// PermissionCache stores custom-role permission sets as JSON strings keyed by
// role name.
type PermissionCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewPermissionCache constructs a cache. A non-positive ttl stores entries
// without expiry.
func NewPermissionCache(client redis.UniversalClient, prefix string, ttl time.Duration) *PermissionCache {
	if prefix == "" {
		prefix = defaultPermissionCachePrefix
	}
	return &PermissionCache{client: client, prefix: prefix, ttl: ttl}
}

// Get returns the cached set for roleName and whether it was present.
func (c *PermissionCache) Get(ctx context.Context, roleName string) (domain.PermissionSet, bool, error) {
	payload, err := c.client.Get(ctx, c.key(roleName)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get permissions: %w", err)
	}

	var set domain.PermissionSet
	if err := json.Unmarshal(payload, &set); err != nil {
		return nil, false, fmt.Errorf("decode cached permissions: %w", err)
	}
	if set == nil {
		set = domain.PermissionSet{}
	}

	return set, true, nil
}

// Generation returns the invalidation counter for roleName, zero when the
// role was never invalidated.
func (c *PermissionCache) Generation(ctx context.Context, roleName string) (int64, error) {
	generation, err := c.client.Get(ctx, c.generationKey(roleName)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get permissions generation: %w", err)
	}
	return generation, nil
}

// Set stores the permission set for roleName if no invalidation happened
// since generation was read. The check and the write run in one WATCH/MULTI
// transaction on the generation key.
func (c *PermissionCache) Set(ctx context.Context, roleName string, generation int64, set domain.PermissionSet) (bool, error) {
	if set == nil {
		set = domain.PermissionSet{}
	}
	payload, err := json.Marshal(set)
	if err != nil {
		return false, fmt.Errorf("encode permissions: %w", err)
	}

	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}

	generationKey := c.generationKey(roleName)
	stored := false
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, generationKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return nil
		}

		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(roleName), payload, ttl)
			return nil
		}); err != nil {
			return err
		}
		stored = true
		return nil
	}, generationKey)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return false, nil
		}
		return false, fmt.Errorf("redis set permissions: %w", err)
	}

	return stored, nil
}

// Invalidate removes the cached sets for every listed role and bumps their
// generations so in-flight fills are dropped.
func (c *PermissionCache) Invalidate(ctx context.Context, roleNames ...string) error {
	if len(roleNames) == 0 {
		return nil
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, name := range roleNames {
			pipe.Del(ctx, c.key(name))
			pipe.Incr(ctx, c.generationKey(name))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate permissions: %w", err)
	}

	return nil
}

func (c *PermissionCache) key(roleName string) string {
	return fmt.Sprintf("%s:%s", c.prefix, roleName)
}

func (c *PermissionCache) generationKey(roleName string) string {
	return fmt.Sprintf("%s-gen:%s", c.prefix, roleName)
}

var _ port.PermissionCache = (*PermissionCache)(nil)
