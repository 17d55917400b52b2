package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	IPFSAPIURL string

	LedgerURL         string
	LedgerCallerID    string
	LedgerCallTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SigningKeySeedHex string
	SigningKeyBase64  string

	PolicyBundlePath    string
	RequireAllChecks    bool
	QualityThreshold    float64
	DefaultCheckWeight  float64
	CheckWeights        map[string]float64
	SupportedCategories []string

	ClaimWindow  time.Duration
	SubmitWindow time.Duration

	PollInterval      time.Duration
	SweepInterval     time.Duration
	VerifyConcurrency int

	BridgeMaxAttempts int
	BridgeBaseBackoff time.Duration
	BridgeMaxBackoff  time.Duration
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:            addr,
		PostgresDSN:         os.Getenv("POSTGRES_DSN"),
		LogLevel:            envDefault("LOG_LEVEL", "info"),
		IPFSAPIURL:          os.Getenv("IPFS_API_URL"),
		LedgerURL:           os.Getenv("LEDGER_URL"),
		LedgerCallerID:      envDefault("LEDGER_CALLER_ID", "bountyd-verifier"),
		LedgerCallTimeout:   envDurationDefault("LEDGER_CALL_TIMEOUT", 30*time.Second),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             envIntDefault("REDIS_DB", 0),
		SigningKeySeedHex:   os.Getenv("SIGNING_KEY_SEED_HEX"),
		SigningKeyBase64:    os.Getenv("SIGNING_KEY_BASE64"),
		PolicyBundlePath:    os.Getenv("POLICY_BUNDLE_PATH"),
		RequireAllChecks:    envBoolDefault("REQUIRE_ALL_CHECKS", false),
		QualityThreshold:    envFloatDefault("QUALITY_THRESHOLD", 0.7),
		DefaultCheckWeight:  envFloatDefault("DEFAULT_CHECK_WEIGHT", 0.1),
		CheckWeights:        envWeights("CHECK_WEIGHTS", defaultCheckWeights()),
		SupportedCategories: envList("SUPPORTED_CATEGORIES", defaultCategories()),
		ClaimWindow:         envDurationDefault("CLAIM_WINDOW", 0),
		SubmitWindow:        envDurationDefault("SUBMIT_WINDOW", 0),
		PollInterval:        envDurationDefault("POLL_INTERVAL", 30*time.Second),
		SweepInterval:       envDurationDefault("SWEEP_INTERVAL", time.Minute),
		VerifyConcurrency:   envIntDefault("VERIFY_CONCURRENCY", 4),
		BridgeMaxAttempts:   envIntDefault("BRIDGE_MAX_ATTEMPTS", 5),
		BridgeBaseBackoff:   envDurationDefault("BRIDGE_BASE_BACKOFF", time.Second),
		BridgeMaxBackoff:    envDurationDefault("BRIDGE_MAX_BACKOFF", 30*time.Second),
	}
}

func defaultCheckWeights() map[string]float64 {
	return map[string]float64{
		"code_review":   0.3,
		"tests_passing": 0.25,
		"documentation": 0.2,
		"accessibility": 0.15,
		"security_scan": 0.1,
	}
}

func defaultCategories() []string {
	return []string{"security", "ui", "docs", "translation", "testing", "other"}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func envFloatDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func envDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

// envWeights parses "name=0.3,other=0.25" pairs; malformed entries are
// dropped rather than failing startup.
func envWeights(key string, def map[string]float64) map[string]float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	out := make(map[string]float64)
	for _, pair := range strings.Split(v, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		weight, err := strconv.ParseFloat(value, 64)
		if err != nil || weight < 0 {
			continue
		}
		out[strings.TrimSpace(name)] = weight
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
