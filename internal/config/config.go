package config

import (
	"os"
	"time"
)

// Config gathers everything outside the DB_* variables consumed by db.Init.
type Config struct {
	Port           string
	GatewayURL     string
	GatewaySession string
	GatewayToken   string
	AMQPURL        string // empty disables outcome events
	SendTimeout    time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		GatewayURL:     getEnv("GATEWAY_URL", "http://localhost:21465"),
		GatewaySession: getEnv("GATEWAY_SESSION", "default"),
		GatewayToken:   os.Getenv("GATEWAY_TOKEN"),
		AMQPURL:        os.Getenv("AMQP_URL"),
		SendTimeout:    30 * time.Second,
	}

	if raw := os.Getenv("SEND_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.SendTimeout = d
		}
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
