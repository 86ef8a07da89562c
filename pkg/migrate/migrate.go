// Package migrate runs the goose SQL migrations that define the ledger
// schema. The files are embedded so every binary carries its own schema; a
// directory on disk can still be used for authoring.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are authored.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded exposes the compiled-in migrations rooted at the migrations directory.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// goose keeps its dialect and base FS in package globals.
var gooseMu sync.Mutex

func withGoose(dir string, fn func(dir string) error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if dir == "" {
		goose.SetBaseFS(Embedded())
		dir = "."
	} else {
		goose.SetBaseFS(os.DirFS(dir))
		dir = "."
	}
	defer goose.SetBaseFS(nil)

	// the SQL files use Postgres enums and partial indexes
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return fn(dir)
}

// Run executes a goose command (up, down, status, ...). An empty dir runs the
// embedded migrations.
func Run(ctx context.Context, db *sql.DB, dir string, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	return withGoose(dir, func(dir string) error {
		if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
			return fmt.Errorf("goose %s: %w", command, err)
		}
		return nil
	})
}

// MigrateToVersion moves the schema up or down until it is at targetVersion.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, targetVersion string) error {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	return withGoose(dir, func(dir string) error {
		current, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		switch {
		case current < target:
			err = goose.UpToContext(ctx, db, dir, target)
		case current > target:
			err = goose.DownToContext(ctx, db, dir, target)
		}
		if err != nil {
			return fmt.Errorf("goose %d -> %d: %w", current, target, err)
		}
		return nil
	})
}
