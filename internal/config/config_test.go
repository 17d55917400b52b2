package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected default addr: %s", cfg.HTTPAddr)
	}
	if cfg.QualityThreshold != 0.7 {
		t.Fatalf("unexpected default threshold: %v", cfg.QualityThreshold)
	}
	if cfg.DefaultCheckWeight != 0.1 {
		t.Fatalf("unexpected default check weight: %v", cfg.DefaultCheckWeight)
	}
	if cfg.CheckWeights["code_review"] != 0.3 || cfg.CheckWeights["tests_passing"] != 0.25 {
		t.Fatalf("unexpected default weights: %v", cfg.CheckWeights)
	}
	if cfg.PollInterval != 30*time.Second || cfg.SweepInterval != time.Minute {
		t.Fatalf("unexpected default intervals: %v %v", cfg.PollInterval, cfg.SweepInterval)
	}
	if cfg.BridgeMaxAttempts != 5 {
		t.Fatalf("unexpected default attempts: %d", cfg.BridgeMaxAttempts)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("QUALITY_THRESHOLD", "0.85")
	t.Setenv("CHECK_WEIGHTS", "code_review=0.5, tests_passing=0.5")
	t.Setenv("SUPPORTED_CATEGORIES", "security, docs")
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("REQUIRE_ALL_CHECKS", "true")

	cfg := FromEnv()

	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("addr override ignored: %s", cfg.HTTPAddr)
	}
	if cfg.QualityThreshold != 0.85 {
		t.Fatalf("threshold override ignored: %v", cfg.QualityThreshold)
	}
	if len(cfg.CheckWeights) != 2 || cfg.CheckWeights["code_review"] != 0.5 {
		t.Fatalf("weights override ignored: %v", cfg.CheckWeights)
	}
	if len(cfg.SupportedCategories) != 2 || cfg.SupportedCategories[1] != "docs" {
		t.Fatalf("categories override ignored: %v", cfg.SupportedCategories)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("poll interval override ignored: %v", cfg.PollInterval)
	}
	if !cfg.RequireAllChecks {
		t.Fatalf("require-all-checks override ignored")
	}
}

func TestFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("QUALITY_THRESHOLD", "not-a-number")
	t.Setenv("POLL_INTERVAL", "-10s")
	t.Setenv("CHECK_WEIGHTS", "garbage")
	t.Setenv("REQUIRE_ALL_CHECKS", "maybe")

	cfg := FromEnv()

	if cfg.QualityThreshold != 0.7 {
		t.Fatalf("malformed threshold should fall back: %v", cfg.QualityThreshold)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Fatalf("negative interval should fall back: %v", cfg.PollInterval)
	}
	if cfg.CheckWeights["code_review"] != 0.3 {
		t.Fatalf("malformed weights should fall back: %v", cfg.CheckWeights)
	}
	if cfg.RequireAllChecks {
		t.Fatalf("malformed bool should fall back to false")
	}
}
