// Package sessionstore persists the client session as two string values under
// fixed keys, the way a browser keeps them in local storage.
package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

const (
	KeyToken    = "token"
	KeyIdentity = "username"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("sessionstore: not found")

// Store is a minimal string key-value store. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// SetMany writes all pairs or none of them.
	SetMany(ctx context.Context, vals map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Options selects and configures a Store backend.
type Options struct {
	Backend    string
	SQLitePath string
	RedisURL   string
	// Namespace prefixes Redis keys so several profiles can share a server.
	Namespace string
}

// Open builds the Store named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case BackendMemory:
		return NewMemory(), nil
	case "", BackendSQLite:
		return OpenSQLite(ctx, opts.SQLitePath)
	case BackendRedis:
		return OpenRedis(ctx, opts.RedisURL, opts.Namespace)
	default:
		return nil, fmt.Errorf("sessionstore: unknown backend %q", opts.Backend)
	}
}

// Memory is an in-process Store. State is lost on exit.
type Memory struct {
	mu   sync.RWMutex
	vals map[string]string
}

func NewMemory() *Memory {
	return &Memory{vals: make(map[string]string)}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vals[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("sessionstore: key must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = value
	return nil
}

func (m *Memory) SetMany(_ context.Context, vals map[string]string) error {
	if err := validateKeys(vals); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range vals {
		m.vals[k] = v
	}
	return nil
}

func validateKeys(vals map[string]string) error {
	for k := range vals {
		if strings.TrimSpace(k) == "" {
			return errors.New("sessionstore: key must not be empty")
		}
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.vals, k)
	}
	return nil
}

func (m *Memory) Close() error { return nil }
