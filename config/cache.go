package config

import (
	"errors"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
)

var _ Validator = (*CacheConfig)(nil)

type CacheMode string

const (
	CacheModeMemory CacheMode = "memory"
	CacheModeRedis  CacheMode = "redis"
	CacheModeNone   CacheMode = "none"
)

type CacheConfig struct {
	Mode    CacheMode   `mapstructure:"mode"`
	Options interface{} `mapstructure:"options"`
}

func (c CacheConfig) Validate() error {
	switch c.Mode {
	case CacheModeRedis:
		if _, ok := c.Options.(*RedisConfig); !ok {
			return errors.New("core.db.cache.options must hold a redis configuration when mode is redis")
		}
	case CacheModeMemory, CacheModeNone, CacheMode(""):
	default:
		return errors.New("core.db.cache.mode must be one of: memory, redis, none")
	}

	return nil
}

type MemoryConfig struct {
}

// cacheConfigHook turns the loosely typed options map into the struct matching the mode.
func cacheConfigHook() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.Map || t != reflect.TypeOf(&CacheConfig{}) {
			return data, nil
		}

		raw, ok := data.(map[string]interface{})
		if !ok {
			return data, nil
		}

		cacheConfig := &CacheConfig{}
		if mode, ok := raw["mode"].(string); ok {
			cacheConfig.Mode = CacheMode(mode)
		}

		switch cacheConfig.Mode {
		case CacheModeRedis:
			redisOptions := &RedisConfig{}
			if opts, ok := raw["options"].(map[string]interface{}); ok && opts != nil {
				if err := mapstructure.WeakDecode(opts, redisOptions); err != nil {
					return nil, err
				}
			}
			cacheConfig.Options = redisOptions
		case CacheModeMemory:
			cacheConfig.Options = MemoryConfig{}
		default:
			cacheConfig.Mode = CacheModeNone
			cacheConfig.Options = nil
		}

		return cacheConfig, nil
	}
}
