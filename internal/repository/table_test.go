package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hl7-synth-server/internal/database"
	"github.com/hl7-synth-server/internal/domain"
)

func generateTestPassword() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(b)
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}
	ctx := context.Background()
	password := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	config := database.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    password,
		MaxConns:    5,
		MinConns:    1,
		MaxConnLife: time.Hour,
		MaxConnIdle: 30 * time.Minute,
		SSLMode:     "disable",
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	runner, err := database.NewMigrationRunner(config.URL(), "", logger)
	require.NoError(t, err)
	require.NoError(t, runner.Up(ctx))
	require.NoError(t, runner.Close())

	db, err := database.NewConnection(ctx, config, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestTableRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewTableRepository(db.Pool, logger)

	sex := &domain.Table{ID: "0001", Name: "Administrative Sex", Values: []domain.TableValue{
		{Code: "F", Text: "Female"}, {Code: "M", Text: "Male"}, {Code: "U", Text: "Unknown"},
	}}

	t.Run("Upsert_And_Get", func(t *testing.T) {
		require.NoError(t, repo.UpsertTable(ctx, sex))

		got, err := repo.GetTable(ctx, "0001")
		require.NoError(t, err)
		assert.Equal(t, sex.Values, got.Values)
		assert.Equal(t, "Administrative Sex", got.Name)
	})

	t.Run("Upsert_Replaces_Values", func(t *testing.T) {
		require.NoError(t, repo.UpsertTable(ctx, &domain.Table{ID: "0001", Name: "Administrative Sex", Values: []domain.TableValue{
			{Code: "O", Text: "Other"},
		}}))

		got, err := repo.GetTable(ctx, "0001")
		require.NoError(t, err)
		assert.Len(t, got.Values, 1)
	})

	t.Run("Missing_Table", func(t *testing.T) {
		_, err := repo.GetTable(ctx, "9999")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, repo.DeleteTable(ctx, "9999"), domain.ErrNotFound)
	})

	t.Run("Seed_Skips_Existing", func(t *testing.T) {
		written, err := repo.Seed(ctx, map[string]*domain.Table{
			"0001": sex,
			"0004": {ID: "0004", Name: "Patient Class", Values: []domain.TableValue{{Code: "I", Text: "Inpatient"}}},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, written)

		ids, err := repo.ListTableIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"0001", "0004"}, ids)
	})

	t.Run("Rejects_Missing_ID", func(t *testing.T) {
		var verr *domain.ValidationError
		assert.ErrorAs(t, repo.UpsertTable(ctx, &domain.Table{}), &verr)
	})
}
