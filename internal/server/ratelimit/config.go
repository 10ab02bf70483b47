package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Rule limits one route. Pattern segments equal to "*" match any single
// path segment, so "/sessions/*/train" covers every session.
type Rule struct {
	Method  string
	Pattern string
	Limit   int           // requests per window; 0 means unlimited
	Window  time.Duration // refill period for Limit tokens
	Burst   int           // bucket capacity, defaults to Limit
}

// Config holds rate limiting configuration
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTTL         time.Duration // buckets unused for this long are dropped
	Allowlist       map[string]bool
	Denylist        map[string]bool
	Rules           []Rule
}

// DefaultConfig returns limits suited to the session API: extraction and
// training calls are expensive, everything else is lenient.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		DefaultLimit:    600,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		Allowlist:       map[string]bool{},
		Denylist:        map[string]bool{},
		Rules:           DefaultRules(),
	}
}

// DefaultRules returns the route specific limits
func DefaultRules() []Rule {
	return []Rule{
		// backend model work
		{Method: "POST", Pattern: "/sessions/*/submit", Limit: 30, Window: time.Hour, Burst: 3},
		{Method: "POST", Pattern: "/sessions/*/train", Limit: 10, Window: time.Hour, Burst: 2},
		{Method: "POST", Pattern: "/sessions/resume", Limit: 60, Window: time.Hour, Burst: 5},

		// writes
		{Method: "POST", Pattern: "/sessions", Limit: 60, Window: time.Minute, Burst: 10},
		{Method: "DELETE", Pattern: "/models/*", Limit: 30, Window: time.Minute, Burst: 5},

		// never limited
		{Method: "GET", Pattern: "/health"},
		{Method: "GET", Pattern: "/metrics"},
	}
}

// FromEnv overlays MODEL_BUILDER_RATE_LIMIT_* variables onto the defaults
func FromEnv() Config {
	cfg := DefaultConfig()
	cfg.Enabled = envBool("MODEL_BUILDER_RATE_LIMIT_ENABLED", cfg.Enabled)
	cfg.DefaultLimit = envInt("MODEL_BUILDER_RATE_LIMIT_DEFAULT_LIMIT", cfg.DefaultLimit)
	cfg.DefaultWindow = envDuration("MODEL_BUILDER_RATE_LIMIT_DEFAULT_WINDOW", cfg.DefaultWindow)
	cfg.CleanupInterval = envDuration("MODEL_BUILDER_RATE_LIMIT_CLEANUP_INTERVAL", cfg.CleanupInterval)
	cfg.Allowlist = parseIPList(os.Getenv("MODEL_BUILDER_RATE_LIMIT_ALLOWLIST"))
	cfg.Denylist = parseIPList(os.Getenv("MODEL_BUILDER_RATE_LIMIT_DENYLIST"))
	return cfg
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return def
}

// parseIPList parses a comma-separated list of addresses into a set
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
