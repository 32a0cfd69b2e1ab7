package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the Cathedral service.
type Config struct {
	BindAddr         string
	Env              string
	LogLevel         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool
	MaxBodyBytes     int64

	StoreBackend string
	RedisURL     string
	DatabaseURL  string
	SQLitePath   string

	OpenAIKey        string
	OpenAIBaseURL    string
	AnthropicKey     string
	AnthropicBaseURL string

	Hollow PersonaConfig
	Rhys   PersonaConfig

	ImageModel        string
	SearchModel       string
	GenerationTimeout time.Duration

	HistoryLimit         int
	ContextHistoryWindow int
	ProjectFileMaxChars  int
	ReadingMaxChars      int
	MemoryMaxItems       int
	// MemorySecret gates the raw memory and history dumps. Empty disables
	// those endpoints.
	MemorySecret string

	LibraryLegacyCompanionKeying bool
}

// PersonaConfig is the per-persona part of Config.
type PersonaConfig struct {
	Backend      string
	Model        string
	Instructions string
}

const (
	defaultHollowInstructions = "You are Hollow, a calm and thoughtful companion. You listen closely, speak plainly and remember what matters to the user."
	defaultRhysInstructions   = "You are Rhys, a curious and playful companion. You are direct, a little wry, and always honest with the user."
)

// dotenvFiles are read before the environment. Existing variables win.
var dotenvFiles = []string{".env"}

// Load reads .env and environment variables and applies safe defaults.
func Load() (Config, error) {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		Env:              strings.ToLower(envOrDefault("APP_ENV", "development")),
		LogLevel:         strings.ToLower(envOrDefault("APP_LOG_LEVEL", "info")),
		ShutdownTimeout:  15 * time.Second,
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "cathedral"),
		AllowAnyOrigin:   false,
		MaxBodyBytes:     8 << 20,

		StoreBackend: strings.ToLower(envOrDefault("STORE_BACKEND", "auto")),
		RedisURL:     stringsTrimSpace("REDIS_URL"),
		DatabaseURL:  stringsTrimSpace("DATABASE_URL"),
		SQLitePath:   stringsTrimSpace("SQLITE_PATH"),

		OpenAIKey:        stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:    stringsTrimSpace("OPENAI_BASE_URL"),
		AnthropicKey:     stringsTrimSpace("ANTHROPIC_API_KEY"),
		AnthropicBaseURL: stringsTrimSpace("ANTHROPIC_BASE_URL"),

		Hollow: PersonaConfig{
			Backend:      strings.ToLower(envOrDefault("HOLLOW_BACKEND", "auto")),
			Model:        stringsTrimSpace("HOLLOW_MODEL"),
			Instructions: envOrDefault("HOLLOW_INSTRUCTIONS", defaultHollowInstructions),
		},
		Rhys: PersonaConfig{
			Backend:      strings.ToLower(envOrDefault("RHYS_BACKEND", "auto")),
			Model:        stringsTrimSpace("RHYS_MODEL"),
			Instructions: envOrDefault("RHYS_INSTRUCTIONS", defaultRhysInstructions),
		},

		ImageModel:        stringsTrimSpace("IMAGE_MODEL"),
		SearchModel:       stringsTrimSpace("SEARCH_MODEL"),
		GenerationTimeout: 120 * time.Second,

		HistoryLimit:        100,
		ProjectFileMaxChars: 50000,
		ReadingMaxChars:     50000,
		MemorySecret:        stringsTrimSpace("MEMORY_SECRET"),
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerationTimeout, err = durationFromEnv("GENERATION_TIMEOUT", cfg.GenerationTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.LibraryLegacyCompanionKeying, err = boolFromEnv("LIBRARY_LEGACY_COMPANION_KEYING", cfg.LibraryLegacyCompanionKeying)
	if err != nil {
		return Config{}, err
	}

	maxBody, err := intFromEnv("APP_MAX_BODY_BYTES", int(cfg.MaxBodyBytes))
	if err != nil {
		return Config{}, err
	}
	cfg.MaxBodyBytes = int64(maxBody)

	for _, f := range []struct {
		key string
		dst *int
	}{
		{"HISTORY_LIMIT", &cfg.HistoryLimit},
		{"CONTEXT_HISTORY_WINDOW", &cfg.ContextHistoryWindow},
		{"PROJECT_FILE_MAX_CHARS", &cfg.ProjectFileMaxChars},
		{"READING_MAX_CHARS", &cfg.ReadingMaxChars},
		{"MEMORY_MAX_ITEMS", &cfg.MemoryMaxItems},
	} {
		*f.dst, err = intFromEnv(f.key, *f.dst)
		if err != nil {
			return Config{}, err
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreBackend {
	case "auto", "redis", "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("STORE_BACKEND must be one of auto, redis, postgres, sqlite, memory")
	}
	for name, p := range map[string]PersonaConfig{"HOLLOW_BACKEND": c.Hollow, "RHYS_BACKEND": c.Rhys} {
		switch p.Backend {
		case "auto", "openai", "anthropic", "mock":
		default:
			return fmt.Errorf("%s must be one of auto, openai, anthropic, mock", name)
		}
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive")
	}
	if c.ContextHistoryWindow < 0 {
		return fmt.Errorf("CONTEXT_HISTORY_WINDOW must be >= 0")
	}
	if c.ProjectFileMaxChars <= 0 || c.ReadingMaxChars <= 0 {
		return fmt.Errorf("PROJECT_FILE_MAX_CHARS and READING_MAX_CHARS must be positive")
	}
	if c.MemoryMaxItems < 0 {
		return fmt.Errorf("MEMORY_MAX_ITEMS must be >= 0")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("APP_MAX_BODY_BYTES must be positive")
	}
	if c.GenerationTimeout < time.Second {
		return fmt.Errorf("GENERATION_TIMEOUT must be at least 1s")
	}
	return nil
}

// IsDevelopment selects human-readable console logs.
func (c Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
