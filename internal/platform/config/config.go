// Package config builds the process configuration from the environment so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "github.com/unstoppabledomains/nomulus/pkg/platform/strings"
)

// Store selects the persistence backend.
type Store string

const (
	StoreMemory   Store = "memory"
	StorePostgres Store = "postgres"
)

// RedisConfig carries the optional Redis connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Transfer carries the registry policy knobs for the transfer lifecycle.
type Transfer struct {
	// PendingPeriod is how long a request stays pending before automatic
	// server approval.
	PendingPeriod time.Duration
	// GraceLength is how long a transfer charge stays refundable.
	GraceLength time.Duration
	// AutorenewGraceLength is the window after an autorenew firing during
	// which a transfer subsumes the autorenew charge.
	AutorenewGraceLength time.Duration
	// MaxRegistrationYears caps expiration extension from the approval
	// moment.
	MaxRegistrationYears int
}

// Server captures everything the registry process needs at startup.
type Server struct {
	Addr          string
	JWTSigningKey string
	StoreBackend  Store
	PostgresDSN   string
	Redis         RedisConfig
	KafkaBrokers  []string
	KafkaTopic    string
	SeedDev       bool
	Transfer      Transfer
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:          envOr("REGISTRY_ADDR", ":8080"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		StoreBackend:  Store(envOr("REGISTRY_STORE", string(StoreMemory))),
		PostgresDSN:   os.Getenv("REGISTRY_POSTGRES_DSN"),
		KafkaTopic:    envOr("REGISTRY_KAFKA_TOPIC", "registry.audit"),
		SeedDev:       os.Getenv("REGISTRY_SEED_DEV") == "true",
		Redis: RedisConfig{
			URL:          os.Getenv("REGISTRY_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Transfer: Transfer{
			PendingPeriod:        durationOr("REGISTRY_TRANSFER_PENDING_PERIOD", 5*24*time.Hour),
			GraceLength:          durationOr("REGISTRY_TRANSFER_GRACE_LENGTH", 5*24*time.Hour),
			AutorenewGraceLength: durationOr("REGISTRY_AUTORENEW_GRACE_LENGTH", 45*24*time.Hour),
			MaxRegistrationYears: intOr("REGISTRY_MAX_REGISTRATION_YEARS", 10),
		},
	}
	if brokers := os.Getenv("REGISTRY_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = platformstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
