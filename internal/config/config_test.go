package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"LLM_RETRY_MAX_ATTEMPTS", "LLM_RETRY_BACKOFF_BASE", "LLM_RETRY_BACKOFF_UNIT",
		"CACHE_TTL", "CACHE_BACKEND", "CLASSIFICATION_CONFIDENCE_FLOOR", "DISCOVERY_MAX_FIELDS",
		"RESULT_STORE", "LLM_REQUEST_TIMEOUT",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.RetryMaxAttempts != 3 || cfg.RetryBackoffBase != 2 || cfg.RetryBackoffUnit != time.Second {
		t.Fatalf("unexpected retry defaults: %d %v %v", cfg.RetryMaxAttempts, cfg.RetryBackoffBase, cfg.RetryBackoffUnit)
	}
	if cfg.CacheTTL != 24*time.Hour || cfg.CacheBackend != "fs" {
		t.Fatalf("unexpected cache defaults: %v %q", cfg.CacheTTL, cfg.CacheBackend)
	}
	if cfg.ClassificationConfidenceFloor != 0.3 || cfg.DiscoveryMaxFields != 5 {
		t.Fatalf("unexpected pipeline defaults: %v %d", cfg.ClassificationConfidenceFloor, cfg.DiscoveryMaxFields)
	}
	if cfg.ResultStore != "memory" || cfg.LLMRequestTimeout != 60*time.Second {
		t.Fatalf("unexpected defaults: %q %v", cfg.ResultStore, cfg.LLMRequestTimeout)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("LLM_RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("LLM_RETRY_BACKOFF_BASE", "1.5")
	t.Setenv("LLM_RETRY_BACKOFF_UNIT", "250ms")
	t.Setenv("CACHE_TTL", "3600")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("CLASSIFICATION_CONFIDENCE_FLOOR", "0.55")

	cfg := Load()
	if cfg.RetryMaxAttempts != 5 || cfg.RetryBackoffBase != 1.5 || cfg.RetryBackoffUnit != 250*time.Millisecond {
		t.Fatalf("unexpected retry overrides: %d %v %v", cfg.RetryMaxAttempts, cfg.RetryBackoffBase, cfg.RetryBackoffUnit)
	}
	if cfg.CacheTTL != time.Hour || cfg.CacheEnabled {
		t.Fatalf("unexpected cache overrides: %v %v", cfg.CacheTTL, cfg.CacheEnabled)
	}
	if cfg.ClassificationConfidenceFloor != 0.55 {
		t.Fatalf("unexpected floor: %v", cfg.ClassificationConfidenceFloor)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("DISCOVERY_MAX_FIELDS", "many")
	t.Setenv("LLM_TEMPERATURE", "hot")
	t.Setenv("CACHE_TTL", "forever")

	cfg := Load()
	if cfg.DiscoveryMaxFields != 5 || cfg.LLMTemperature != 0 || cfg.CacheTTL != 24*time.Hour {
		t.Fatalf("expected fallbacks, got %d %v %v", cfg.DiscoveryMaxFields, cfg.LLMTemperature, cfg.CacheTTL)
	}
}
