package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"permission_service/internal/database/redis"

	redis_v9 "github.com/redis/go-redis/v9"
)

var RedisRepository *RedisRepo

func init() {
	RedisRepository = NewRedisRepo()
}

type RedisRepo struct {
	client *redis_v9.Client
}

func NewRedisRepo() *RedisRepo {
	return &RedisRepo{
		client: redis.Redis_Client,
	}
}

func (rr *RedisRepo) SaveStructCached(ctx context.Context, key string, model any, ttl time.Duration) error {
	val, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("error saving struct to cache: %w", err)
	}
	if err := rr.client.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("error saving struct to cache: %w", err)
	}
	return nil
}

func (rr *RedisRepo) GetStructCached(ctx context.Context, key string, model any) error {
	raw, err := rr.client.Get(ctx, key).Bytes()
	if err != nil {
		return fmt.Errorf("error getting struct from cache: %w", err)
	}
	return json.Unmarshal(raw, model)
}

func resetTokenKey(guildID int64) string {
	return fmt.Sprintf("permission:reset-confirm:%d", guildID)
}

// SaveResetToken arms the reset confirmation window for a guild. The token
// expires on its own after the window passes.
func (rr *RedisRepo) SaveResetToken(ctx context.Context, guildID int64, token string, window time.Duration) error {
	err := rr.client.Set(ctx, resetTokenKey(guildID), token, window).Err()
	if err != nil {
		return fmt.Errorf("error arming reset confirmation for guild %d: %w", guildID, err)
	}
	return nil
}

// TakeResetToken consumes the pending reset token for a guild, returning
// empty when no confirmation window is armed or it already lapsed.
func (rr *RedisRepo) TakeResetToken(ctx context.Context, guildID int64) (string, error) {
	token, err := rr.client.GetDel(ctx, resetTokenKey(guildID)).Result()
	if errors.Is(err, redis_v9.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error consuming reset confirmation for guild %d: %w", guildID, err)
	}
	return token, nil
}
