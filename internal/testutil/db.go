// Package testutil provides an isolated, migrated sqlite database for tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"flockkeeper-backend/internal/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDB returns an in-memory database private to t. A single connection is
// kept open so every statement sees the same memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)

	db, err := database.Open(sqlite.Open(dsn))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
