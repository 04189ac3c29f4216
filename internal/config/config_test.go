package config

import (
	"strings"
	"testing"
)

func setBaseline(t *testing.T) {
	t.Helper()
	t.Setenv("POLISDESK_AUTH_SECRET", "test-secret")
	t.Setenv("POLISDESK_ADMIN_PASSWORD", "Sufficient1234")
	t.Setenv("POLISDESK_TOKEN_TTL", "")
	t.Setenv("POLISDESK_KAFKA_BROKERS", "")
}

func TestLoadDefaults(t *testing.T) {
	setBaseline(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Addr)
	}
	if cfg.TokenTTL.Hours() != 12 {
		t.Fatalf("unexpected token ttl: %v", cfg.TokenTTL)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	setBaseline(t)
	t.Setenv("POLISDESK_AUTH_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing auth secret")
	}
}

func TestLoadEnforcesSeedPolicy(t *testing.T) {
	setBaseline(t)

	// too short
	t.Setenv("POLISDESK_ADMIN_PASSWORD", "Short1")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for short admin password")
	}
	// long enough but single character class
	t.Setenv("POLISDESK_ADMIN_PASSWORD", "alllowercaseonly")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for low-complexity admin password")
	}
}

func TestLoadParsesBrokers(t *testing.T) {
	setBaseline(t)
	t.Setenv("POLISDESK_KAFKA_BROKERS", "k1:9092, k2:9092 ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
	if !strings.HasPrefix(cfg.KafkaTopic, "polisdesk.") {
		t.Fatalf("unexpected topic: %s", cfg.KafkaTopic)
	}
}
