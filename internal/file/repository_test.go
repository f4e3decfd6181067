package file

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/abduss/cloudbox/internal/auth"
	"github.com/abduss/cloudbox/internal/config"
	"github.com/abduss/cloudbox/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// setupTestDB starts PostgreSQL in a container and applies the embedded migrations.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:16-alpine"),
		postgres.WithDatabase("cloudbox_test"),
		postgres.WithUsername("cloudbox"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	cfg := config.PostgresConfig{
		Host:     host,
		Port:     portNum,
		User:     "cloudbox",
		Password: "test-password",
		Database: "cloudbox_test",
		SSLMode:  "disable",
	}

	require.NoError(t, storage.Migrate(cfg, zap.NewNop()))

	pool, err := storage.NewPostgresPool(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func createOwner(t *testing.T, pool *pgxpool.Pool, username string) uuid.UUID {
	t.Helper()
	user, err := auth.NewRepository(pool).CreateUser(context.Background(), username, "hash")
	require.NoError(t, err)
	return user.ID
}

func newRecord(ownerID uuid.UUID, name string, size int64, at time.Time) Record {
	return Record{
		OwnerID:         ownerID,
		FileName:        name,
		StorageKey:      storageKey(ownerID, name),
		FileSize:        size,
		ContentType:     "text/plain",
		Checksum:        "abc123",
		UploadTimestamp: at,
	}
}

func TestRepositoryLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	alice := createOwner(t, pool, "alice")
	bob := createOwner(t, pool, "bob")
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := repo.Create(ctx, newRecord(alice, "a.txt", 10, base))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.True(t, first.UploadTimestamp.Equal(base))

	second, err := repo.Create(ctx, newRecord(alice, "b.txt", 20, base.Add(time.Minute)))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newRecord(bob, "a.txt", 30, base))
	require.NoError(t, err)

	list, err := repo.ListByOwner(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Equal(t, first.ID, list[1].ID)

	found, err := repo.FindByOwnerAndName(ctx, bob, "a.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 30, found.FileSize)

	_, err = repo.FindByOwnerAndName(ctx, bob, "b.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)

	keys, err := repo.ListStorageKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 3)

	require.NoError(t, repo.Delete(ctx, first.ID))
	assert.ErrorIs(t, repo.Delete(ctx, first.ID), ErrFileNotFound)
	_, err = repo.FindByID(ctx, first.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestRepositoryCreateReplacesSameName(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	owner := createOwner(t, pool, "carol")
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	old, err := repo.Create(ctx, newRecord(owner, "report.pdf", 100, base))
	require.NoError(t, err)
	latest, err := repo.Create(ctx, newRecord(owner, "report.pdf", 200, base.Add(time.Hour)))
	require.NoError(t, err)

	_, err = repo.FindByID(ctx, old.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)

	found, err := repo.FindByOwnerAndName(ctx, owner, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, latest.ID, found.ID)
	assert.EqualValues(t, 200, found.FileSize)
}

func TestRepositoryListEmptyIsNotNil(t *testing.T) {
	pool := setupTestDB(t)

	list, err := NewRepository(pool).ListByOwner(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
