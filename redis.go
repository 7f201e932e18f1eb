package main

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

func NewRedisClient(cfg Redis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// redisBlob keeps one document under a single string key.
type redisBlob struct {
	rdb redis.Cmdable
	key string
}

func newRedisBlob(rdb redis.Cmdable, prefix, name string) *redisBlob {
	return &redisBlob{rdb: rdb, key: prefix + name}
}

func (o *redisBlob) Load(ctx context.Context) ([]byte, error) {
	v, err := o.rdb.Get(ctx, o.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return v, err
}

func (o *redisBlob) Save(ctx context.Context, v []byte) error {
	return o.rdb.Set(ctx, o.key, v, 0).Err()
}

func (o *redisBlob) String() string { return "redis:" + o.key }
