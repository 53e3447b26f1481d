package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.BasePath != "/api" {
		t.Errorf("base_path = %q, want /api", cfg.Server.BasePath)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("storage.type = %q, want memory", cfg.Storage.Type)
	}
	if cfg.Assistant.Model != "gpt-4o" {
		t.Errorf("assistant.model = %q, want gpt-4o", cfg.Assistant.Model)
	}
	if cfg.Assistant.TokenBudget != 6000 {
		t.Errorf("assistant.token_budget = %d, want 6000", cfg.Assistant.TokenBudget)
	}
	if cfg.Events.Type != "direct" {
		t.Errorf("events.type = %q, want direct", cfg.Events.Type)
	}
	if got := cfg.Server.Addr(); got != ":8080" {
		t.Errorf("Addr() = %q, want :8080", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9090
  allowed_origins:
    - http://localhost:5173
storage:
  type: sqlite
  sqlite:
    path: /tmp/test.db
assistant:
  model: gpt-4o-mini
events:
  type: nats
  nats:
    url: nats://broker:4222
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "http://localhost:5173" {
		t.Errorf("allowed_origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Storage.Type != "sqlite" || cfg.Storage.SQLite.Path != "/tmp/test.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Assistant.Model != "gpt-4o-mini" {
		t.Errorf("assistant.model = %q", cfg.Assistant.Model)
	}
	if cfg.Events.NATS.URL != "nats://broker:4222" {
		t.Errorf("nats url = %q", cfg.Events.NATS.URL)
	}
	// Defaults still fill whatever the file leaves out.
	if cfg.Server.BasePath != "/api" {
		t.Errorf("base_path = %q, want default /api", cfg.Server.BasePath)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SKETCH_SERVER__PORT", "7001")
	t.Setenv("SKETCH_STORAGE__TYPE", "postgres")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7001 {
		t.Errorf("port = %d, want env override 7001", cfg.Server.Port)
	}
	if cfg.Storage.Type != "postgres" {
		t.Errorf("storage.type = %q, want postgres", cfg.Storage.Type)
	}
}

func TestSecretSubstitution(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
assistant:
  api_key: ${SKETCH_TEST_KEY}
storage:
  postgres:
    dsn: postgres://sketch:${SKETCH_TEST_PW}@db:5432/sketch
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SKETCH_TEST_KEY", "sk-test-123")
	t.Setenv("SKETCH_TEST_PW", "hunter2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Assistant.APIKey != "sk-test-123" {
		t.Errorf("api_key = %q", cfg.Assistant.APIKey)
	}
	if want := "postgres://sketch:hunter2@db:5432/sketch"; cfg.Storage.Postgres.DSN != want {
		t.Errorf("dsn = %q, want %q", cfg.Storage.Postgres.DSN, want)
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple substitution", "${TEST_VAR}", "test-value"},
		{"substitution in string", "prefix-${TEST_VAR}-suffix", "prefix-test-value-suffix"},
		{"no substitution", "plain-string", "plain-string"},
		{"undefined var", "${UNDEFINED_VAR}", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := substituteEnvVars(tt.input); got != tt.want {
				t.Errorf("substituteEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("45s", time.Minute); got != 45*time.Second {
		t.Errorf("Duration(45s) = %v", got)
	}
	if got := Duration("", time.Minute); got != time.Minute {
		t.Errorf("Duration(empty) = %v, want fallback", got)
	}
	if got := Duration("bogus", 30*time.Second); got != 30*time.Second {
		t.Errorf("Duration(bogus) = %v, want fallback", got)
	}
}
