// Package dbtest opens isolated sqlite databases carrying the ledger schema,
// for package tests that need real transactions.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/chronicle/pkg/config"
	"github.com/angelmondragon/chronicle/pkg/db"
	"github.com/angelmondragon/chronicle/pkg/db/models"
)

// New returns a client on a fresh shared-cache memory database. The pool is
// capped at one connection so concurrent transactions queue behind each other.
func New(t testing.TB) *db.Client {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	client, err := db.New(context.Background(), config.DBConfig{
		Driver: db.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()),
	}, nil)
	return migrated(t, client, err)
}

// NewConcurrent returns a client on a WAL file database in t.TempDir() whose
// pool holds conns connections, so transactions run side by side and only the
// ledger's own locks order them. Writers wait on busy_timeout for the sqlite
// write lock.
func NewConcurrent(t testing.TB, conns int) *db.Client {
	t.Helper()
	client, err := db.New(context.Background(), config.DBConfig{
		Driver:       db.DriverSQLite,
		DSN:          fmt.Sprintf("file:%s/ledger.db?_journal_mode=WAL&_busy_timeout=10000", t.TempDir()),
		MaxOpenConns: conns,
	}, nil)
	return migrated(t, client, err)
}

func migrated(t testing.TB, client *db.Client, err error) *db.Client {
	t.Helper()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := client.DB().AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return client
}
