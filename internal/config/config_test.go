package config

import (
	"testing"
	"time"
)

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if v := envInt("TEST_INT", 0); v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestEnvIntFallback(t *testing.T) {
	// TEST_INT_MISSING is not set.
	if v := envInt("TEST_INT_MISSING", 99); v != 99 {
		t.Fatalf("expected fallback 99, got %d", v)
	}
}

func TestEnvIntInvalidFallsBack(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	if v := envInt("TEST_INT_BAD", 7); v != 7 {
		t.Fatalf("expected fallback 7 for non-integer value, got %d", v)
	}
}

func TestEnvFloatValid(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.75")
	if v := envFloat("TEST_FLOAT", 0); v != 0.75 {
		t.Fatalf("expected 0.75, got %v", v)
	}
}

func TestEnvDurationValid(t *testing.T) {
	t.Setenv("TEST_DUR", "5s")
	if v := envDuration("TEST_DUR", 0); v != 5*time.Second {
		t.Fatalf("expected 5s, got %s", v)
	}
}

func TestEnvDurationInvalidFallsBack(t *testing.T) {
	t.Setenv("TEST_DUR_BAD", "five-seconds")
	if v := envDuration("TEST_DUR_BAD", time.Minute); v != time.Minute {
		t.Fatalf("expected fallback 1m, got %s", v)
	}
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed with defaults, got: %v", err)
	}
	if cfg.EpisodicCapacity != 1000 {
		t.Fatalf("expected default episodic capacity 1000, got %d", cfg.EpisodicCapacity)
	}
	if cfg.StalledAfter != 10*24*time.Hour {
		t.Fatalf("expected default stalled threshold of 10 days, got %s", cfg.StalledAfter)
	}
}

func TestValidateRejectsBadMinConfidence(t *testing.T) {
	t.Setenv("PIPEWISE_MIN_CONFIDENCE", "1.5")
	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to fail with out-of-range PIPEWISE_MIN_CONFIDENCE")
	}
}

func TestValidateAllowsZeroCapacity(t *testing.T) {
	// Zero means "no global cap"; the retention sweep skips the global pass.
	t.Setenv("PIPEWISE_EPISODIC_CAPACITY", "0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to accept zero PIPEWISE_EPISODIC_CAPACITY, got: %v", err)
	}
	if cfg.EpisodicCapacity != 0 {
		t.Fatalf("expected capacity 0, got %d", cfg.EpisodicCapacity)
	}
}

func TestValidateRejectsNegativeCapacity(t *testing.T) {
	t.Setenv("PIPEWISE_EPISODIC_CAPACITY", "-5")
	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to fail with negative PIPEWISE_EPISODIC_CAPACITY")
	}
}

func TestDatabaseURLPrefixedVarWins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://plain")
	t.Setenv("PIPEWISE_DATABASE_URL", "postgres://prefixed")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.DatabaseURL != "postgres://prefixed" {
		t.Fatalf("expected PIPEWISE_DATABASE_URL to take precedence, got %q", cfg.DatabaseURL)
	}
}

func TestDatabaseURLFallsBackToUnprefixed(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://plain")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.DatabaseURL != "postgres://plain" {
		t.Fatalf("expected DATABASE_URL fallback, got %q", cfg.DatabaseURL)
	}
}
