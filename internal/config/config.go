package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Config aggregates runtime configuration for the CloudBox API.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	MinIO    MinIOConfig
	Auth     AuthConfig
	Metrics  MetricsConfig
	Files    FilesConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Database      string
	SSLMode       string
	RunMigrations bool
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MigrateURL returns the DSN in the form expected by the golang-migrate pgx/v5 driver.
func (p PostgresConfig) MigrateURL() string {
	return fmt.Sprintf("pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MinIOConfig carries MinIO connection and bucket information.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	BcryptCost         int
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// FilesConfig controls the file storage orchestrator.
type FilesConfig struct {
	MaxUploadSize     int64
	ReconcileInterval time.Duration
}

// Load reads configuration values from environment variables, applying defaults.
// The result is validated; a missing required option is reported as an error.
func Load() (Config, error) {
	maxUpload, err := getBytes("CLOUDBOX_MAX_UPLOAD_SIZE", 100*humanize.MiByte)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Host:         getString("CLOUDBOX_API_HOST", "0.0.0.0"),
			Port:         getInt("CLOUDBOX_API_PORT", 8080),
			ReadTimeout:  getDuration("CLOUDBOX_API_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("CLOUDBOX_API_WRITE_TIMEOUT", 15*time.Minute),
			IdleTimeout:  getDuration("CLOUDBOX_API_IDLE_TIMEOUT", 60*time.Second),
		},
		Postgres: PostgresConfig{
			Host:          getString("POSTGRES_HOST", "localhost"),
			Port:          getInt("POSTGRES_PORT", 5432),
			User:          getString("POSTGRES_USER", "cloudbox_app"),
			Password:      getString("POSTGRES_PASSWORD", ""),
			Database:      getString("POSTGRES_DB", "cloudbox"),
			SSLMode:       strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
			RunMigrations: getBool("POSTGRES_RUN_MIGRATIONS", true),
		},
		MinIO: MinIOConfig{
			Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("MINIO_ROOT_USER", ""),
			SecretAccessKey: getString("MINIO_ROOT_PASSWORD", ""),
			Bucket:          getString("MINIO_BUCKET", "cloudbox"),
			UseSSL:          getBool("MINIO_USE_SSL", false),
			Region:          getString("MINIO_REGION", ""),
		},
		Auth: loadAuthConfig(),
		Metrics: MetricsConfig{
			PrometheusPath: getString("CLOUDBOX_METRICS_PATH", "/metrics"),
		},
		Files: FilesConfig{
			MaxUploadSize:     maxUpload,
			ReconcileInterval: getDuration("CLOUDBOX_RECONCILE_INTERVAL", 0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every required option that is missing or out of range.
func (c Config) Validate() error {
	var errs []error
	require := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	require(c.Postgres.Host, "POSTGRES_HOST")
	require(c.Postgres.User, "POSTGRES_USER")
	require(c.Postgres.Database, "POSTGRES_DB")
	require(c.MinIO.Endpoint, "MINIO_ENDPOINT")
	require(c.MinIO.AccessKeyID, "MINIO_ROOT_USER")
	require(c.MinIO.SecretAccessKey, "MINIO_ROOT_PASSWORD")
	require(c.MinIO.Bucket, "MINIO_BUCKET")
	require(c.Auth.AccessTokenSecret, "CLOUDBOX_JWT_SECRET")
	require(c.Auth.RefreshTokenSecret, "CLOUDBOX_JWT_REFRESH_SECRET")

	if c.Files.MaxUploadSize <= 0 {
		errs = append(errs, errors.New("CLOUDBOX_MAX_UPLOAD_SIZE must be positive"))
	}
	if c.Files.ReconcileInterval < 0 {
		errs = append(errs, errors.New("CLOUDBOX_RECONCILE_INTERVAL must not be negative"))
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

// getBytes accepts plain byte counts as well as human readable sizes ("100MB", "1 GiB").
func getBytes(key string, fallback uint64) (int64, error) {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return int64(fallback), nil
	}
	parsed, err := humanize.ParseBytes(val)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return int64(parsed), nil
}

func loadAuthConfig() AuthConfig {
	cost := getInt("CLOUDBOX_AUTH_BCRYPT_COST", 12)
	if cost < 4 || cost > 31 {
		cost = 12
	}

	return AuthConfig{
		AccessTokenSecret:  getString("CLOUDBOX_JWT_SECRET", ""),
		RefreshTokenSecret: getString("CLOUDBOX_JWT_REFRESH_SECRET", ""),
		AccessTokenTTL:     getDuration("CLOUDBOX_AUTH_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    getDuration("CLOUDBOX_AUTH_REFRESH_TOKEN_TTL", 720*time.Hour),
		BcryptCost:         cost,
	}
}
