// Package testutil builds throwaway stores for package tests.
package testutil

import (
	"context"
	"testing"

	"scrumboard/backend/internal/database"
	"scrumboard/backend/internal/repositories"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

// NewSQLiteStore returns a migrated in-memory store closed at test cleanup.
func NewSQLiteStore(t testing.TB) *repositories.GormStore {
	t.Helper()

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:   database.DriverSQLite,
		DSN:      ":memory:",
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)

	store := repositories.NewGormStore(pool.DB)
	require.NoError(t, store.Migrate(context.Background()))

	t.Cleanup(func() {
		_ = pool.Close()
	})
	return store
}
