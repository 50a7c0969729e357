// Package dbtest provides an in-memory SQLite Store for tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Guizzs26/watch-crm/internal/db"
	"github.com/Guizzs26/watch-crm/internal/mapper"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Schema mirrors the production tables closely enough for store and service tests
var Schema = []string{
	`CREATE TABLE watches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		brand TEXT NOT NULL,
		model TEXT NOT NULL,
		reference TEXT UNIQUE,
		year INTEGER,
		condition TEXT,
		price NUMERIC,
		currency TEXT,
		status TEXT NOT NULL DEFAULT 'available',
		description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP
	)`,
	`CREATE TABLE inquiries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		watch_id INTEGER,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		message TEXT,
		status TEXT NOT NULL DEFAULT 'new',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP
	)`,
	`CREATE TABLE sell_submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		brand TEXT NOT NULL,
		model TEXT,
		year INTEGER,
		asking_price NUMERIC,
		notes TEXT,
		status TEXT NOT NULL DEFAULT 'new',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP
	)`,
	`CREATE TABLE notification_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		destination TEXT NOT NULL,
		provider TEXT,
		message_id TEXT,
		status TEXT NOT NULL,
		error TEXT,
		reference TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP
	)`,
}

// Open returns a Store over a fresh in-memory SQLite database named after the test.
// With no ddl the default Schema is applied
func Open(t testing.TB, ddl ...string) *db.Store {
	t.Helper()

	if len(ddl) == 0 {
		ddl = Schema
	}

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	gdb, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	for _, stmt := range ddl {
		if err := gdb.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("resolve sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	store := db.NewSQLStore(sqlDB, mapper.SQLite, nil)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
