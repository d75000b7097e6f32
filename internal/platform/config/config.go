// Package config builds runtime configuration from the environment so main
// stays lean. A .env file is honored in development via godotenv; real
// deployments set variables directly.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures everything the server binary needs to start.
type Config struct {
	Addr          string
	JWTSigningKey string

	PostgresDSN string

	Redis RedisConfig

	KafkaBrokers []string
	AuditTopic   string

	S3Bucket   string
	S3Region   string
	S3Endpoint string // non-empty for local object stores
}

// RedisConfig controls the snapshot cache client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SnapshotTTL  time.Duration
}

// FromEnv loads configuration, applying development defaults where a value
// is optional. Secrets have no defaults outside development.
func FromEnv() Config {
	// Best effort; absence of a .env file is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		Addr:          getenv("PREQUAL_ADDR", ":8080"),
		JWTSigningKey: getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getint("REDIS_POOL_SIZE", 10),
			MinIdleConns: getint("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getdur("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getdur("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getdur("REDIS_WRITE_TIMEOUT", 3*time.Second),
			SnapshotTTL:  getdur("SNAPSHOT_CACHE_TTL", 5*time.Minute),
		},
		AuditTopic: getenv("AUDIT_TOPIC", "prequal.audit"),
		S3Bucket:   getenv("S3_BUCKET", "vendor-documents"),
		S3Region:   getenv("S3_REGION", "me-south-1"),
		S3Endpoint: os.Getenv("S3_ENDPOINT"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitComma(brokers)
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getdur(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
