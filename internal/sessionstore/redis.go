package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis stores the session in a Redis server, letting several terminals share
// one login.
type Redis struct {
	client    *redis.Client
	namespace string
}

var _ Store = (*Redis)(nil)

// OpenRedis connects to url (redis://...) and verifies the connection.
func OpenRedis(ctx context.Context, url, namespace string) (*Redis, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("sessionstore: redis url must not be empty")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("sessionstore: redis ping: %w", err)
	}
	return NewRedis(c, namespace), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, namespace string) *Redis {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = "analytica"
	}
	return &Redis{client: client, namespace: namespace}
}

func (r *Redis) key(k string) string {
	return r.namespace + ":" + k
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sessionstore: get %q: %w", key, err)
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("sessionstore: key must not be empty")
	}
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("sessionstore: set %q: %w", key, err)
	}
	return nil
}

// SetMany uses MSET, which Redis applies atomically.
func (r *Redis) SetMany(ctx context.Context, vals map[string]string) error {
	if len(vals) == 0 {
		return nil
	}
	if err := validateKeys(vals); err != nil {
		return err
	}
	pairs := make([]any, 0, 2*len(vals))
	for k, v := range vals {
		pairs = append(pairs, r.key(k), v)
	}
	if err := r.client.MSet(ctx, pairs...).Err(); err != nil {
		return fmt.Errorf("sessionstore: mset: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, r.key(k))
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("sessionstore: delete: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
