package credstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKV son los comandos de *redis.Client que usa el store.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis guarda las credenciales de un perfil bajo el prefijo creds:<perfil>:.
type Redis struct {
	client  redisKV
	prefix  string
	timeout time.Duration
}

func NewRedis(client *redis.Client, profile string) *Redis {
	if client == nil {
		return nil
	}
	return newRedis(client, profile)
}

func newRedis(client redisKV, profile string) *Redis {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		profile = "default"
	}
	return &Redis{
		client:  client,
		prefix:  "creds:" + profile + ":",
		timeout: 500 * time.Millisecond,
	}
}

func (s *Redis) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (s *Redis) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *Redis) Remove(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Del(ctx, s.prefix+key).Err()
}
