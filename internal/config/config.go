// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"polisdesk.org/internal/auth"
)

// Config is everything cmd/api needs to start.
type Config struct {
	Addr string

	// PGDSN selects the Postgres store; empty runs the in-memory store.
	PGDSN string

	// AuthSecret signs session tokens. Required.
	AuthSecret string
	TokenTTL   time.Duration

	// Seed admin, upserted at startup and by reset-system.
	AdminEmail    string
	AdminName     string
	AdminPassword string

	// BaseURL is the public origin used in password-reset links.
	BaseURL string

	// Kafka is optional; no brokers means no events.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads .env (if present) and the environment. It fails hard on a
// missing auth secret or an admin password below the seeding policy, so a
// misconfigured deployment never comes up half-secured.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:          getenv("POLISDESK_ADDR", ":8080"),
		PGDSN:         os.Getenv("POLISDESK_PG_DSN"),
		AuthSecret:    os.Getenv("POLISDESK_AUTH_SECRET"),
		TokenTTL:      12 * time.Hour,
		AdminEmail:    getenv("POLISDESK_ADMIN_EMAIL", "admin@polisdesk.local"),
		AdminName:     getenv("POLISDESK_ADMIN_NAME", "Administrator"),
		AdminPassword: os.Getenv("POLISDESK_ADMIN_PASSWORD"),
		BaseURL:       getenv("POLISDESK_BASE_URL", "http://localhost:8080"),
		KafkaTopic:    getenv("POLISDESK_KAFKA_TOPIC", "polisdesk.events"),
	}

	if raw := os.Getenv("POLISDESK_TOKEN_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: bad POLISDESK_TOKEN_TTL: %w", err)
		}
		cfg.TokenTTL = ttl
	}
	if brokers := os.Getenv("POLISDESK_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if cfg.AuthSecret == "" {
		return Config{}, errors.New("config: POLISDESK_AUTH_SECRET is required")
	}
	if cfg.AdminPassword == "" {
		return Config{}, errors.New("config: POLISDESK_ADMIN_PASSWORD is required")
	}
	if err := auth.SeedPolicy.Validate(cfg.AdminPassword); err != nil {
		return Config{}, fmt.Errorf("config: POLISDESK_ADMIN_PASSWORD rejected: %w", err)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
