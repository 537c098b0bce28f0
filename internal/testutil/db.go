// Package testutil provides shared test fixtures.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"dairy_billing/internal/db"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// OpenDB returns an isolated in-memory database with the full schema
// applied. It is backed by a single connection, which keeps the shared-cache
// memory database alive and serializes writers the way row locks do on
// MySQL.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:billingtest%d?mode=memory&cache=shared", dbSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gdb.AutoMigrate(db.Models()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}
