package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Assistant AssistantConfig `koanf:"assistant"`
	Renderer  RendererConfig  `koanf:"renderer"`
	Events    EventsConfig    `koanf:"events"`
	Generate  GenerateConfig  `koanf:"generate"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int      `koanf:"port"`
	BasePath       string   `koanf:"base_path"`
	RequestTimeout string   `koanf:"request_timeout"` // Duration string like "60s"
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// Addr returns the listen address for the configured port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type StorageConfig struct {
	Type     string         `koanf:"type"` // memory, sqlite, postgres
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Postgres PostgresConfig `koanf:"postgres"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type PostgresConfig struct {
	DSN string `koanf:"dsn"`
}

type AssistantConfig struct {
	BaseURL     string `koanf:"base_url"`
	APIKey      string `koanf:"api_key"`
	Model       string `koanf:"model"`
	Timeout     string `koanf:"timeout"`
	TokenBudget int    `koanf:"token_budget"` // Max transcript tokens sent per assistant call
}

type RendererConfig struct {
	BaseURL string `koanf:"base_url"`
	Timeout string `koanf:"timeout"`
}

type EventsConfig struct {
	Type string     `koanf:"type"` // direct, nats
	NATS NATSConfig `koanf:"nats"`
}

type NATSConfig struct {
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

type GenerateConfig struct {
	Timeout string `koanf:"timeout"` // Budget per generation job
}

type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the YAML file at path (default config.yaml; a missing file
// is fine) and overlays SKETCH_ environment variables, with __ marking
// nesting: SKETCH_SERVER__PORT=9090 sets server.port. Secret-bearing
// fields support ${VAR} substitution so config files can stay
// committable.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars and defaults
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Environment variables override file config
	if err := k.Load(env.Provider("SKETCH_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "SKETCH_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	defaults := map[string]any{
		"server.port":                8080,
		"server.base_path":           "/api",
		"server.request_timeout":     "60s",
		"storage.type":               "memory",
		"storage.sqlite.path":        "sketchd.db",
		"assistant.base_url":         "https://api.openai.com/v1",
		"assistant.model":            "gpt-4o",
		"assistant.timeout":          "60s",
		"assistant.token_budget":     6000,
		"renderer.timeout":           "30s",
		"events.type":                "direct",
		"events.nats.url":            "nats://127.0.0.1:4222",
		"events.nats.subject_prefix": "sketch",
		"generate.timeout":           "120s",
		"logging.level":              "info",
		"logging.format":             "json",
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Assistant.APIKey = substituteEnvVars(cfg.Assistant.APIKey)
	cfg.Storage.Postgres.DSN = substituteEnvVars(cfg.Storage.Postgres.DSN)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Duration parses a duration string, returning fallback when it is empty
// or malformed. Timeouts degrade to defaults rather than failing startup.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
