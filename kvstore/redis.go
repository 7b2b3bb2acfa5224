package kvstore

import (
	"context"

	"github.com/cccteam/ccc"
	"github.com/go-playground/errors/v5"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*Redis)(nil)

// Redis is a Store backed by Redis. Every key is prefixed with the namespace so that several
// clients can share one Redis database.
type Redis struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedis returns a Redis store for namespace.
func NewRedis(client redis.UniversalClient, namespace string) *Redis {
	return &Redis{
		client:    client,
		namespace: namespace,
	}
}

func (r *Redis) key(key string) string {
	return "websession:" + r.namespace + ":" + key
}

// Get returns the value for key.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	v, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}

		return "", false, errors.Wrapf(err, "failed to get %s", key)
	}

	return v, true, nil
}

// Set stores value under key.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return errors.Wrapf(err, "failed to set %s", key)
	}

	return nil
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete %s", key)
	}

	return nil
}
