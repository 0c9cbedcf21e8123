package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP:        HTTPConfig{Port: 8080},
		Embedding:   EmbeddingConfig{APIKey: "test-key"},
		VectorStore: VectorStoreConfig{URL: "http://localhost:8000"},
	}
}

func TestValidate_InvalidBudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Budget = BudgetConfig{DailyTokenLimit: 1000000, Action: "invalid_action"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid budget action")
	}

	expected := `embedding.budget.action must be "warn" or "reject", got "invalid_action"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	validActions := []string{"", "warn", "reject"}

	for _, action := range validActions {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validConfig()
			cfg.Embedding.Budget.Action = action

			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.APIKey = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestValidate_MissingVectorStoreURL(t *testing.T) {
	cfg := validConfig()
	cfg.VectorStore.URL = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing vector store url")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Embedding.Model != "text-embedding-3-large" {
		t.Errorf("expected default model, got %q", cfg.Embedding.Model)
	}
	if cfg.Embedding.BatchSize != 100 {
		t.Errorf("expected BatchSize=100, got %d", cfg.Embedding.BatchSize)
	}
	if cfg.Embedding.RequestsPerMinute != 3000 {
		t.Errorf("expected RequestsPerMinute=3000, got %d", cfg.Embedding.RequestsPerMinute)
	}
	if cfg.Embedding.MaxRetries != 3 {
		t.Errorf("expected MaxRetries=3, got %d", cfg.Embedding.MaxRetries)
	}
	if cfg.Cache.Dir != "./cache/embeddings" {
		t.Errorf("expected default cache dir, got %q", cfg.Cache.Dir)
	}
	if cfg.Cache.TTLHours != 24 {
		t.Errorf("expected TTLHours=24, got %d", cfg.Cache.TTLHours)
	}
	if cfg.Cache.MaxSizeMB != 500 {
		t.Errorf("expected MaxSizeMB=500, got %d", cfg.Cache.MaxSizeMB)
	}
	if cfg.VectorStore.Tenant != "default_tenant" {
		t.Errorf("expected default tenant, got %q", cfg.VectorStore.Tenant)
	}
	if cfg.VectorStore.TimeoutSec != 60 {
		t.Errorf("expected TimeoutSec=60, got %d", cfg.VectorStore.TimeoutSec)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:        HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Embedding:   EmbeddingConfig{Model: "text-embedding-3-small", BatchSize: 50, RequestsPerMinute: 60},
		Cache:       CacheConfig{Dir: "/tmp/custom", TTLHours: 48, MaxSizeMB: 100},
		VectorStore: VectorStoreConfig{Tenant: "custom_tenant"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("expected model preserved, got %q", cfg.Embedding.Model)
	}
	if cfg.Cache.Dir != "/tmp/custom" {
		t.Errorf("expected cache dir preserved, got %q", cfg.Cache.Dir)
	}
	if cfg.VectorStore.Tenant != "custom_tenant" {
		t.Errorf("expected tenant preserved, got %q", cfg.VectorStore.Tenant)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TENDEX_TEST_KEY", "secret")

	in := []byte("api_key: ${TENDEX_TEST_KEY}\nurl: ${TENDEX_TEST_MISSING:-http://localhost:8000}\n")
	out := string(expandEnvVars(in))

	want := "api_key: secret\nurl: http://localhost:8000\n"
	if out != want {
		t.Errorf("expandEnvVars:\ngot:  %q\nwant: %q", out, want)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(cfgDir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := []byte(`
http:
  port: 9090
embedding:
  api_key: test-key
  model: text-embedding-3-small
vector_store:
  url: http://localhost:8000
cache:
  enabled: true
`)
	if err := os.WriteFile(filepath.Join(cfgDir, "test.yaml"), content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("Model = %q", cfg.Embedding.Model)
	}
	if !cfg.Cache.Enabled {
		t.Error("expected cache enabled")
	}
	// Defaults applied on top of the file.
	if cfg.Embedding.BatchSize != 100 {
		t.Errorf("BatchSize = %d, want default 100", cfg.Embedding.BatchSize)
	}
}
