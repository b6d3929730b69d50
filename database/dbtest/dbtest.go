// Package dbtest opens migrated SQLite databases for tests.
package dbtest

import (
	"fmt"
	"os"
	"testing"
	"time"

	"agency-billing-backend/database"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PostgresDSNEnv names the variable holding a Postgres DSN for tests that
// need real row locks.
const PostgresDSNEnv = "BILLING_TEST_POSTGRES_DSN"

// OpenTestDB returns a migrated in-memory SQLite database private to t.
// The pool is limited to one connection so concurrent callers queue instead
// of failing with SQLITE_BUSY. SQLite ignores FOR UPDATE, so concurrency on
// this database is serialised by the pool, not by row locks; use
// OpenPostgres to exercise the locks.
func OpenTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
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

// OpenPostgres returns a migrated Postgres database from PostgresDSNEnv and
// skips t when the variable is unset. Tests share the database, so they must
// work on their own tenants.
func OpenPostgres(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
