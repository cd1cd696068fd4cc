package storage

import (
	"context"
	"fmt"
	"time"

	redisx "CMProject/service/storage/redis"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var ctx = context.Background()

// presence key: im:presence:<user>
// Value: gateway_id, TTL controls the online validity period.
// 网关外的 HTTP 面用它回答 "is X online"，网关内部以 ConnManager 为准。
func presenceKey(user string) string { return "im:presence:" + user }

// PresenceOnline sets the user as online and renews the TTL
func PresenceOnline(user, gatewayID string, ttl time.Duration) error {
	rdb := redisx.TryGetRedis()
	if rdb == nil {
		return fmt.Errorf("redis not initialized")
	}
	return rdb.Set(ctx, presenceKey(user), gatewayID, ttl).Err()
}

// PresenceOffline actively sets the user offline (deletes the key)
func PresenceOffline(user string) error {
	rdb := redisx.TryGetRedis()
	if rdb == nil {
		return fmt.Errorf("redis not initialized")
	}
	return rdb.Del(ctx, presenceKey(user)).Err()
}

// PresenceLookup checks whether the user is online
func PresenceLookup(user string) (gatewayID string, online bool, err error) {
	rdb := redisx.TryGetRedis()
	if rdb == nil {
		return "", false, fmt.Errorf("redis not initialized")
	}
	val, err := rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
