// Package config builds the process configuration from environment variables
// so main stays lean.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration.
type Config struct {
	Addr string `env:"VAULTCORE_ADDR" envDefault:":8080"`

	Postgres PostgresConfig `envPrefix:"POSTGRES_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Kafka    KafkaConfig    `envPrefix:"KAFKA_"`
	Boundary BoundaryConfig `envPrefix:"BOUNDARY_"`

	// MasterSealKey is the hex-encoded public half of the keypair that vault
	// private keys are envelope-sealed under. The matching secret half lives
	// only in the boundary service.
	MasterSealKey string `env:"MASTER_SEAL_KEY"`

	// FingerprintSalt is the platform-wide secret that global-scope
	// fingerprint salts derive from. Tenant salts derive from it per tenant.
	FingerprintSalt string `env:"FINGERPRINT_SALT"`
}

// PostgresConfig configures the transactional store.
type PostgresConfig struct {
	DSN             string        `env:"DSN" envDefault:"postgres://localhost:5432/vaultcore?sslmode=disable"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	Migrate         bool          `env:"MIGRATE" envDefault:"true"`
}

// RedisConfig configures the optional scoped-vault resolution cache.
// An empty URL disables caching entirely.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
	ResolveTTL   time.Duration `env:"RESOLVE_TTL" envDefault:"5m"`
}

// KafkaConfig configures the audit outbox publisher. Empty brokers disable
// publishing; outbox rows then accumulate until a publisher drains them.
type KafkaConfig struct {
	Brokers    []string      `env:"BROKERS" envSeparator:","`
	AuditTopic string        `env:"AUDIT_TOPIC" envDefault:"vaultcore.audit"`
	PollEvery  time.Duration `env:"POLL_EVERY" envDefault:"2s"`
}

// BoundaryConfig configures the decrypt/fingerprint boundary client.
type BoundaryConfig struct {
	URL          string        `env:"URL"`
	ServiceToken string        `env:"SERVICE_TOKEN"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"10s"`
	RetryCount   int           `env:"RETRY_COUNT" envDefault:"2"`
}

// FromEnv parses the environment into a Config.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
