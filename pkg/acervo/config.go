package acervo

import (
	"os"
	"strconv"
	"time"

	"github.com/acervo-cultural/acervo/pkg/store/cqrs"
)

// Backend names the document store the server runs on.
type Backend string

const (
	BackendMemory    Backend = "memory"
	BackendPostgres  Backend = "postgres"
	BackendSurrealDB Backend = "surrealdb"
	BackendCQRS      Backend = "cqrs"
)

// Config holds application configuration shared by every command.
type Config struct {
	Backend       Backend
	MigrationMode cqrs.MigrationMode
	ReadOnly      bool

	PostgresDSN   string
	SurrealDBURL  string
	SurrealDBNS   string
	SurrealDBDB   string
	SurrealDBUser string
	SurrealDBPass string
	PollInterval  time.Duration

	ServerPort string

	JWTSecret string
	JWTIssuer string

	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3PublicURL    string
	UploadPreset   string
	UploadMaxBytes int64

	LogLevel  string
	LogFormat string
	LogPath   string
}

// UploadsEnabled reports whether a bucket is configured.
func (c *Config) UploadsEnabled() bool {
	return c.S3Bucket != ""
}

// getEnv retrieves an environment variable, treating empty as unset.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if v, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
