package config

import (
	"os"
	"testing"
)

const (
	testEnvPostgresDSN = "POSTGRES_DSN"
	testPostgresDSN    = "postgres://localhost/test"
	testErrLoad        = "Load() error = %v"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv(testEnvPostgresDSN, testPostgresDSN)
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv(testEnvPostgresDSN)

	_, err := Load()
	if err == nil {
		t.Error("expected error for missing POSTGRES_DSN")
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if cfg.PostgresDSN != testPostgresDSN {
		t.Errorf("PostgresDSN = %q, want %q", cfg.PostgresDSN, testPostgresDSN)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if cfg.Env != "dev" {
		t.Errorf("Env default = %q, want %q", cfg.Env, "dev")
	}

	if cfg.HealthPort != 8080 {
		t.Errorf("HealthPort default = %d, want %d", cfg.HealthPort, 8080)
	}

	if cfg.DomainsConfigPath != "config/domains.yaml" {
		t.Errorf("DomainsConfigPath default = %q, want %q", cfg.DomainsConfigPath, "config/domains.yaml")
	}

	if cfg.CrawlDefaultRequestsPerSec != 1 {
		t.Errorf("CrawlDefaultRequestsPerSec default = %v, want 1", cfg.CrawlDefaultRequestsPerSec)
	}

	if cfg.SchedulerDrainInterval.String() != "10s" {
		t.Errorf("SchedulerDrainInterval default = %v, want 10s", cfg.SchedulerDrainInterval)
	}
}

func TestLoad_EmbeddingOverrides(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("EMBEDDING_TARGET_DIMENSIONS", "768")

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if cfg.OpenAIAPIKey != "sk-test" {
		t.Errorf("OpenAIAPIKey = %q, want sk-test", cfg.OpenAIAPIKey)
	}

	embeddingCfg := cfg.EmbeddingCfg()
	if embeddingCfg.TargetDimensions != 768 {
		t.Errorf("TargetDimensions = %d, want 768", embeddingCfg.TargetDimensions)
	}
}
