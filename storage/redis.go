package storage

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/smart1986/go-sessionlink/config"
	"github.com/smart1986/go-sessionlink/logger"
	"github.com/smart1986/go-sessionlink/system"
)

// RedisStore keeps the session keys in redis so multiple console processes on
// one host observe the same login state.
type RedisStore struct {
	Client *redis.Client
	prefix string
}

func InitRedisStore(c *config.Config) *RedisStore {
	ctx := context.Background()
	poolSize := 8
	if c.Redis.PoolSize > 0 {
		poolSize = c.Redis.PoolSize
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.Db,
		PoolSize: poolSize,
	})
	_, err := client.Ping(ctx).Result()
	if err != nil {
		panic(err)
	}
	prefix := c.Redis.Prefix
	if prefix == "" {
		prefix = "sessionlink:"
	}
	r := &RedisStore{
		Client: client,
		prefix: prefix,
	}
	system.RegisterExitHandler(r)
	logger.Infof("Connected to Redis Successfully, Addr: %s", c.Redis.Addr)
	return r
}

func (r *RedisStore) Get(key string) (string, error) {
	v, err := r.Client.Get(context.Background(), r.prefix+key).Result()
	if err == redis.Nil {
		return "", ErrKeyNotFound
	}
	return v, err
}

func (r *RedisStore) Set(key string, value string) error {
	return r.Client.Set(context.Background(), r.prefix+key, value, 0).Err()
}

func (r *RedisStore) Delete(key string) error {
	return r.Client.Del(context.Background(), r.prefix+key).Err()
}

func (r *RedisStore) OnSystemExit() {
	_ = r.Client.Close()
	logger.Info("Disconnected from Redis")
}
