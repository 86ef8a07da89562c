package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/chronicle/pkg/config"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(context.Background(), config.DBConfig{
		Driver: DriverSQLite,
		DSN:    fmt.Sprintf("file:dbclient_%s?mode=memory&cache=shared", uuid.NewString()),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.DB().AutoMigrate(&testModel{}))
	return client
}

func countModels(t *testing.T, client *Client) int64 {
	t.Helper()
	var count int64
	require.NoError(t, client.DB().Model(&testModel{}).Count(&count).Error)
	return count
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}))
	require.Equal(t, int64(1), countModels(t, client))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, int64(1), countModels(t, client))
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	client := newTestClient(t)

	require.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "panicky"}).Error; err != nil {
				return err
			}
			panic("kaboom")
		})
	})
	require.Equal(t, int64(0), countModels(t, client))
}

func TestPing(t *testing.T) {
	client := newTestClient(t)
	require.NoError(t, client.Ping(context.Background()))
}

func TestNew_RejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{Driver: "oracle", DSN: "x"}, nil)
	require.Error(t, err)

	_, err = New(context.Background(), config.DBConfig{Driver: DriverSQLite}, nil)
	require.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	client := newTestClient(t)
	require.NoError(t, client.DB().Create(&testModel{Name: "dup"}).Error)
	err := client.DB().Create(&testModel{Name: "dup"}).Error
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err, ""))
	require.False(t, IsUniqueViolation(errors.New("other"), ""))
	require.False(t, IsUniqueViolation(nil, ""))
}

func TestIsLockTimeout(t *testing.T) {
	require.True(t, IsLockTimeout(fmt.Errorf("select: %w", &pgconn.PgError{Code: "55P03"})))
	require.True(t, IsLockTimeout(sqlite3.Error{Code: sqlite3.ErrBusy}))
	require.False(t, IsLockTimeout(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsLockTimeout(errors.New("plain")))
	require.False(t, IsLockTimeout(nil))
}

func TestSetLocalLockTimeout_NoopOnSQLite(t *testing.T) {
	client := newTestClient(t)
	require.False(t, IsPostgres(client.DB()))
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return SetLocalLockTimeout(tx, 2*time.Second)
	}))
}

func TestSQLitePoolSize(t *testing.T) {
	memory := newTestClient(t)
	sqlDB, err := memory.DB().DB()
	require.NoError(t, err)
	require.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	wal, err := New(context.Background(), config.DBConfig{
		Driver:       DriverSQLite,
		DSN:          fmt.Sprintf("file:%s/pool.db?_journal_mode=WAL&_busy_timeout=5000", t.TempDir()),
		MaxOpenConns: 4,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = wal.Close() })
	sqlDB, err = wal.DB().DB()
	require.NoError(t, err)
	require.Equal(t, 4, sqlDB.Stats().MaxOpenConnections)
}
