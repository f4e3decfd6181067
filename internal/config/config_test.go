package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MINIO_ROOT_USER", "cloudbox")
	t.Setenv("MINIO_ROOT_PASSWORD", "secret-password")
	t.Setenv("CLOUDBOX_JWT_SECRET", "access-secret")
	t.Setenv("CLOUDBOX_JWT_REFRESH_SECRET", "refresh-secret")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "cloudbox", cfg.MinIO.Bucket)
	assert.Equal(t, int64(100<<20), cfg.Files.MaxUploadSize)
	assert.Equal(t, time.Duration(0), cfg.Files.ReconcileInterval)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.True(t, cfg.Postgres.RunMigrations)
}

func TestLoadParsesHumanReadableUploadSize(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CLOUDBOX_MAX_UPLOAD_SIZE", "2 MiB")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(2<<20), cfg.Files.MaxUploadSize)
}

func TestLoadRejectsGarbageUploadSize(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CLOUDBOX_MAX_UPLOAD_SIZE", "lots")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadFailsFastOnMissingCredentials(t *testing.T) {
	t.Setenv("MINIO_ROOT_USER", "")
	t.Setenv("MINIO_ROOT_PASSWORD", "")
	t.Setenv("CLOUDBOX_JWT_SECRET", "access-secret")
	t.Setenv("CLOUDBOX_JWT_REFRESH_SECRET", "refresh-secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MINIO_ROOT_USER")
	assert.Contains(t, err.Error(), "MINIO_ROOT_PASSWORD")
}

func TestDSNFormats(t *testing.T) {
	pg := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "cloudbox", SSLMode: "disable"}

	assert.Equal(t, "postgres://u:p@db:5433/cloudbox?sslmode=disable", pg.DSN())
	assert.Equal(t, "pgx5://u:p@db:5433/cloudbox?sslmode=disable", pg.MigrateURL())
}
