package thetaclient

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// env returns the value of key or a fallback default.
func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// mustEnv fetches the value of an env var or terminates the process.
func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("thetaclient: environment variable %s is required", key)
	}
	return v
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return def
}

// Config assembles everything a Client needs: the upstream base URL,
// S3-compatible storage, and the optional Postgres ledger / Redis
// calendar cache. Storage is required; Postgres and Redis are
// optional — omit Postgres for a no-op ledger, omit Redis for an
// uncached HTTP calendar lookup.
type Config struct {
	BaseURL    string // e.g. "http://localhost:25503/v3"
	NumThreads int
	LogLevel   string // DEBUG, INFO, WARN, ERROR

	S3Endpoint     string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3Region       string
	S3UseTLS       bool
	S3CheckBuckets []string

	// PostgresDSN enables the finalized/failed-file audit ledger. Empty
	// disables it (ledger.Noop).
	PostgresDSN string

	// RedisAddr enables caching the upstream trading-day calendar
	// across requests. Empty disables it (direct HTTP lookup every
	// Plan call).
	RedisAddr string
}

// ConfigFromEnv builds a Config from the process environment, mirroring
// the env/mustEnv convention used throughout this codebase.
func ConfigFromEnv() Config {
	checkBuckets := []string{}
	if v := os.Getenv("S3_CHECK_BUCKETS"); v != "" {
		checkBuckets = strings.Split(v, ",")
	}

	return Config{
		BaseURL:    env("THETA_BASE_URL", "http://localhost:25503/v3"),
		NumThreads: envInt("THETA_NUM_THREADS", 4),
		LogLevel:   env("THETA_LOG_LEVEL", "INFO"),

		S3Endpoint:     mustEnv("S3_ENDPOINT"),
		S3Bucket:       env("S3_BUCKET", "theta-client-data"),
		S3AccessKey:    mustEnv("S3_ACCESS_KEY"),
		S3SecretKey:    mustEnv("S3_SECRET_KEY"),
		S3Region:       env("S3_REGION", "us-east-1"),
		S3UseTLS:       envBool("S3_USE_TLS", false),
		S3CheckBuckets: checkBuckets,

		PostgresDSN: env("THETA_POSTGRES_DSN", ""),
		RedisAddr:   env("THETA_REDIS_ADDR", ""),
	}
}
