package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Client configures the terminal chat client.
type Client struct {
	BackendURL     string `yaml:"backend_url" env:"ANALYTICA_BACKEND_URL" env-default:"http://localhost:8080"`
	SessionStore   string `yaml:"session_store" env:"ANALYTICA_SESSION_STORE" env-default:"sqlite"`
	SQLitePath     string `yaml:"sqlite_path" env:"ANALYTICA_SQLITE_PATH"`
	RedisURL       string `yaml:"redis_url" env:"ANALYTICA_REDIS_URL"`
	RedisNamespace string `yaml:"redis_namespace" env:"ANALYTICA_REDIS_NAMESPACE" env-default:"analytica"`
	LogFile        string `yaml:"log_file" env:"ANALYTICA_LOG_FILE"`
	LogLevel       string `yaml:"log_level" env:"ANALYTICA_LOG_LEVEL" env-default:"info"`
	// TelemetryDir enables trace and metric export to files when set.
	TelemetryDir string `yaml:"telemetry_dir" env:"ANALYTICA_TELEMETRY_DIR"`
}

// Backend configures the chat backend (Lambda and container server).
type Backend struct {
	StateTable       string        `yaml:"state_table" env:"STATE_TABLE" env-required:"true"`
	ParamPrefix      string        `yaml:"param_prefix" env:"PARAM_PREFIX" env-required:"true"`
	MaxContextItems  int           `yaml:"max_context_items" env:"MAX_CONTEXT_ITEMS" env-default:"20"`
	MaxMessageLength int           `yaml:"max_message_length" env:"MAX_MESSAGE_LENGTH" env-default:"4000"`
	TokenTTL         time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"60m"`
	AllowedOrigins   []string      `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000,http://localhost:5173,http://localhost:8080"`
	Port             string        `yaml:"port" env:"PORT" env-default:"8080"`
	LogLevel         string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

// LoadClient reads .env (if present), then the optional YAML file at path,
// then the environment.
func LoadClient(path string) (*Client, error) {
	var cfg Client
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.SQLitePath) == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		cfg.SQLitePath = filepath.Join(dir, "session.db")
	}
	cfg.BackendURL = strings.TrimRight(strings.TrimSpace(cfg.BackendURL), "/")
	return &cfg, nil
}

// LoadBackend is LoadClient's counterpart for the backend.
func LoadBackend(path string) (*Backend, error) {
	var cfg Backend
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.StateTable) == "" {
		return nil, errors.New("config: STATE_TABLE must not be empty")
	}
	if strings.TrimSpace(cfg.ParamPrefix) == "" {
		return nil, errors.New("config: PARAM_PREFIX must not be empty")
	}
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("config: TOKEN_TTL must be positive")
	}
	return &cfg, nil
}

// DefaultDir is the per-user directory for client state and logs.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve user config dir: %w", err)
	}
	return filepath.Join(base, "analytica"), nil
}

func load(path string, cfg any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load .env: %w", err)
	}
	if path = strings.TrimSpace(path); path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
		return nil
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("config: read env: %w", err)
	}
	return nil
}
