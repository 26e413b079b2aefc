package db

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"path"
	"strings"
	"time"

	"github.com/go-gorm/caches/v4"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"go.notebook.dev/notebook/config"
	"go.notebook.dev/notebook/core"
	"go.notebook.dev/notebook/db/models"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func NewDatabase(ctx core.Context) (*gorm.DB, []core.ContextBuilderOption, error) {
	cfg := ctx.Config()
	rootLogger := ctx.Logger()

	dbType := cfg.Config().Core.DB.Type
	var db *gorm.DB
	var err error

	switch dbType {
	case "mysql":
		db, err = openMySQLDatabase(cfg, rootLogger)
	case "sqlite":
		var dbFile string

		if path.IsAbs(cfg.Config().Core.DB.File) {
			dbFile = cfg.Config().Core.DB.File
		} else {
			dbFile = path.Join(cfg.ConfigDir(), cfg.Config().Core.DB.File)
		}

		db, err = OpenSQLiteDatabase(dbFile, rootLogger)
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", dbType)
	}

	if err != nil {
		return nil, nil, err
	}

	cacher, err := getCacher(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cacher != nil {
		cache := &caches.Caches{Conf: &caches.Config{
			Easer:  true,
			Cacher: cacher,
		}}
		if err := db.Use(cache); err != nil {
			return nil, nil, err
		}
	}

	ctxOpts := []core.ContextBuilderOption{
		core.ContextWithStartupFunc(func(ctx core.Context) error {
			return Migrate(db)
		}),
		core.ContextWithDB(db),
		core.ContextWithExitFunc(func(ctx core.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}),
	}

	return db, ctxOpts, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.GetModels()...)
}

func getCacheMode(cm config.Manager) (config.CacheMode, error) {
	cache := cm.Config().Core.DB.Cache
	if cache == nil {
		return config.CacheModeNone, nil
	}

	switch cache.Mode {
	case "", config.CacheModeNone:
		return config.CacheModeNone, nil
	case config.CacheModeMemory, config.CacheModeRedis:
		return cache.Mode, nil
	}

	return "", fmt.Errorf("invalid cache mode: %s", cache.Mode)
}

func openMySQLDatabase(cfg config.Manager, rootLogger *core.Logger) (*gorm.DB, error) {
	dbCfg := cfg.Config().Core.DB

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local", dbCfg.Username, dbCfg.Password, dbCfg.Host, dbCfg.Port, dbCfg.Name, dbCfg.Charset)

	return gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: newLogger(rootLogger.Logger, rootLogger.Level()),
	})
}

func OpenSQLiteDatabase(file string, rootLogger *core.Logger) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(file), &gorm.Config{
		Logger: newLogger(rootLogger.Logger, rootLogger.Level()),
	})
}

func getCacher(cm config.Manager) (caches.Cacher, error) {
	mode, err := getCacheMode(cm)
	if err != nil {
		return nil, err
	}

	switch mode {
	case config.CacheModeMemory:
		return &memoryCacher{}, nil
	case config.CacheModeRedis:
		rcfg, ok := cm.Config().Core.DB.Cache.Options.(*config.RedisConfig)
		if !ok {
			return nil, fmt.Errorf("invalid redis cache options: %T", cm.Config().Core.DB.Cache.Options)
		}
		return newRedisCacher(rcfg.Client(), rcfg.KeyPrefix), nil
	}

	return nil, nil
}

// RetryOnLock reruns operation with exponential backoff while the database reports lock contention.
func RetryOnLock(db *gorm.DB, operation func(*gorm.DB) *gorm.DB) error {
	initialBackoff := 100 * time.Millisecond
	maxBackoff := 10 * time.Second
	attempt := 0

	for {
		result := operation(db)
		if result.Error == nil {
			return nil
		}

		if !isLockError(result.Error) {
			return result.Error
		}

		backoff := float64(initialBackoff) * math.Pow(2, float64(attempt))
		jitter := rand.Float64() * float64(initialBackoff)
		sleepDuration := time.Duration(math.Min(backoff+jitter, float64(maxBackoff)))

		if ctx := db.Statement.Context; ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleepDuration):
			}
		} else {
			time.Sleep(sleepDuration)
		}
		attempt++
	}
}

func isLockError(err error) bool {
	var myErr *mysqlDriver.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1205, 1213, 1040:
			return true
		}
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "deadlock") ||
		strings.Contains(errMsg, "lock wait timeout") ||
		strings.Contains(errMsg, "database is locked") ||
		strings.Contains(errMsg, "too many connections")
}

// LogCacheMode reports the configured query cache on startup.
func LogCacheMode(cm config.Manager, logger *core.Logger) {
	mode, err := getCacheMode(cm)
	if err != nil {
		logger.Warn("query cache misconfigured", zap.Error(err))
		return
	}
	logger.Info("query cache", zap.String("mode", string(mode)))
}
