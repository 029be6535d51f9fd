package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jinkaiteo/edms/internal/identity"
	redis "github.com/redis/go-redis/v9"
)

const (
	capabilityUsersSet = "capabilities:users"
)

func capabilityKey(userID string) string {
	return "capabilities:" + userID
}

var _ CapabilityCache = (*RedisCapabilityCache)(nil)

type RedisCapabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCapabilityCache(client *redis.Client, ttl time.Duration) *RedisCapabilityCache {
	return &RedisCapabilityCache{client: client, ttl: ttl}
}

func (r *RedisCapabilityCache) GetCapabilities(ctx context.Context, userID string) (*identity.Capabilities, error) {
	res := r.client.Get(ctx, capabilityKey(userID))
	if res.Err() != nil {
		if errors.Is(res.Err(), redis.Nil) {
			return nil, nil
		}
		return nil, res.Err()
	}

	buf, err := res.Bytes()
	if err != nil {
		return nil, err
	}

	caps := &identity.Capabilities{}
	if err := json.Unmarshal(buf, caps); err != nil {
		return nil, err
	}

	return caps, nil
}

func (r *RedisCapabilityCache) SetCapabilities(ctx context.Context, caps identity.Capabilities) error {
	marshal, err := json.Marshal(caps)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if err := p.Set(ctx, capabilityKey(caps.UserID), marshal, r.ttl).Err(); err != nil {
			return err
		}

		return p.SAdd(ctx, capabilityUsersSet, caps.UserID).Err()
	})

	return err
}

func (r *RedisCapabilityCache) Invalidate(ctx context.Context, userID string) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if err := p.Del(ctx, capabilityKey(userID)).Err(); err != nil {
			return err
		}

		return p.SRem(ctx, capabilityUsersSet, userID).Err()
	})

	return err
}

func (r *RedisCapabilityCache) Flush(ctx context.Context) (int, error) {
	users, err := r.client.SMembers(ctx, capabilityUsersSet).Result()
	if err != nil {
		return 0, err
	}
	if len(users) == 0 {
		return 0, nil
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		keys := make([]string, 0, len(users))
		for _, u := range users {
			keys = append(keys, capabilityKey(u))
		}
		if err := p.Del(ctx, keys...).Err(); err != nil {
			return err
		}

		return p.Del(ctx, capabilityUsersSet).Err()
	})
	if err != nil {
		return 0, err
	}

	return len(users), nil
}
