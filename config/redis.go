package config

import (
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Validator = (*RedisConfig)(nil)
var _ Defaults = (*RedisConfig)(nil)

// RedisConfig is shared by the query cache and the cron locker when clustered.
type RedisConfig struct {
	Address     string        `mapstructure:"address"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`

	clientOnce sync.Once
	client     *redis.Client
}

func (r *RedisConfig) Defaults() map[string]interface{} {
	return map[string]interface{}{
		"address":      "localhost:6379",
		"db":           0,
		"key_prefix":   "notebook:",
		"dial_timeout": "5s",
	}
}

func (r *RedisConfig) Validate() error {
	if r.Address == "" {
		return errors.New("redis address is required")
	}
	if r.DB < 0 {
		return errors.New("redis db must not be negative")
	}
	return nil
}

// Client returns one shared client per config so every consumer reuses the same pool.
func (r *RedisConfig) Client() *redis.Client {
	r.clientOnce.Do(func() {
		r.client = redis.NewClient(&redis.Options{
			Addr:        r.Address,
			Password:    r.Password,
			DB:          r.DB,
			DialTimeout: r.DialTimeout,
		})
	})

	return r.client
}
