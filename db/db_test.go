package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-gorm/caches/v4"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.notebook.dev/notebook/core"
	"go.notebook.dev/notebook/db/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := OpenSQLiteDatabase(filepath.Join(t.TempDir(), "notebook.db"), core.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))

	return gdb
}

func TestMigrateCreatesTables(t *testing.T) {
	gdb := openTestDB(t)

	assert.True(t, gdb.Migrator().HasTable(&models.File{}))
	assert.True(t, gdb.Migrator().HasTable(&models.User{}))
}

func TestRetryOnLock(t *testing.T) {
	gdb := openTestDB(t)

	t.Run("retries lock errors", func(t *testing.T) {
		calls := 0
		err := RetryOnLock(gdb, func(tx *gorm.DB) *gorm.DB {
			calls++
			res := tx.Session(&gorm.Session{})
			if calls < 2 {
				_ = res.AddError(errors.New("database is locked"))
			}
			return res
		})

		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("returns other errors immediately", func(t *testing.T) {
		calls := 0
		err := RetryOnLock(gdb, func(tx *gorm.DB) *gorm.DB {
			calls++
			res := tx.Session(&gorm.Session{})
			_ = res.AddError(errors.New("constraint failed"))
			return res
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestIsLockError(t *testing.T) {
	assert.True(t, isLockError(errors.New("Deadlock found when trying to get lock")))
	assert.True(t, isLockError(errors.New("database is locked")))
	assert.False(t, isLockError(errors.New("record not found")))
	assert.True(t, isLockError(fmt.Errorf("create file: %w", &mysqlDriver.MySQLError{Number: 1213, Message: "deadlock"})))
	assert.False(t, isLockError(&mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"}))
}

func testCacher(t *testing.T, cacher caches.Cacher) {
	ctx := context.Background()

	miss, err := cacher.Get(ctx, caches.IdentifierPrefix+"missing", &caches.Query[any]{Dest: &[]string{}})
	require.NoError(t, err)
	assert.Nil(t, miss)

	stored := &caches.Query[any]{Dest: &[]string{"a.txt", "b.txt"}, RowsAffected: 2}
	require.NoError(t, cacher.Store(ctx, caches.IdentifierPrefix+"files", stored))

	var names []string
	hit, err := cacher.Get(ctx, caches.IdentifierPrefix+"files", &caches.Query[any]{Dest: &names})
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)
	assert.EqualValues(t, 2, hit.RowsAffected)

	require.NoError(t, cacher.Invalidate(ctx))

	miss, err = cacher.Get(ctx, caches.IdentifierPrefix+"files", &caches.Query[any]{Dest: &[]string{}})
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestMemoryCacher(t *testing.T) {
	testCacher(t, &memoryCacher{})
}

func TestRedisCacher(t *testing.T) {
	srv := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	testCacher(t, newRedisCacher(rdb, "notebook:"))

	for _, key := range srv.Keys() {
		assert.NotContains(t, key, caches.IdentifierPrefix, "invalidate left %s behind", key)
	}
}

func TestRedisCacherPrefixIsolation(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	ctx := context.Background()

	a := newRedisCacher(rdb, "a:")
	b := newRedisCacher(rdb, "b:")

	val := &caches.Query[any]{Dest: &[]string{"x"}}
	require.NoError(t, a.Store(ctx, caches.IdentifierPrefix+"files", val))
	require.NoError(t, b.Store(ctx, caches.IdentifierPrefix+"files", val))
	assert.True(t, srv.Exists("a:"+caches.IdentifierPrefix+"files"))

	require.NoError(t, a.Invalidate(ctx))

	assert.False(t, srv.Exists("a:"+caches.IdentifierPrefix+"files"))
	assert.True(t, srv.Exists("b:"+caches.IdentifierPrefix+"files"))
}
