package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"analytica-chat/internal/integrations/paramstore"
)

// Settings are the backend secrets and tunables kept in Parameter Store.
type Settings struct {
	Username     string
	PasswordHash string
	JWTSecret    string
	Model        string
}

type SettingsSource interface {
	Settings(ctx context.Context) (Settings, error)
}

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// SettingsLoader fetches Settings on first use and caches them. A failed
// load is not cached, so the next request retries.
type SettingsLoader struct {
	params ParamGetter
	prefix string

	mu     sync.RWMutex
	loaded bool
	cached Settings
}

func NewSettingsLoader(p ParamGetter, paramPrefix string) (*SettingsLoader, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	return &SettingsLoader{params: p, prefix: paramPrefix}, nil
}

func (l *SettingsLoader) names() (username, hash, secret, model string) {
	return l.prefix + "/auth/username",
		l.prefix + "/auth/password_hash",
		l.prefix + "/auth/jwt_secret",
		l.prefix + "/config/openai_model"
}

func (l *SettingsLoader) Settings(ctx context.Context) (Settings, error) {
	l.mu.RLock()
	if l.loaded {
		defer l.mu.RUnlock()
		return l.cached, nil
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return l.cached, nil
	}

	username, hash, secret, model := l.names()
	vals, err := paramstore.GetParameters(ctx, l.params, username, hash, secret, model)
	if err != nil {
		return Settings{}, fmt.Errorf("usecase: load settings: %w", err)
	}
	s := Settings{
		Username:     strings.TrimSpace(vals[username]),
		PasswordHash: strings.TrimSpace(vals[hash]),
		JWTSecret:    vals[secret],
		Model:        strings.TrimSpace(vals[model]),
	}
	if s.Username == "" || s.PasswordHash == "" || s.JWTSecret == "" || s.Model == "" {
		return Settings{}, errors.New("usecase: load settings: empty parameter value")
	}
	l.cached = s
	l.loaded = true
	return s, nil
}
