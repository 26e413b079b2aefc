package config

import (
	"errors"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
)

var _ Validator = (*ClusterConfig)(nil)

// ClusterConfig is set when several notebook nodes share one database and bucket.
// Redis then backs both the query cache and the cron job locks.
type ClusterConfig struct {
	Enabled bool         `mapstructure:"enabled"`
	Redis   *RedisConfig `mapstructure:"redis"`
}

func (c ClusterConfig) Validate() error {
	if c.Enabled && c.Redis == nil {
		return errors.New("core.clustered.redis is required when clustering is enabled")
	}

	return nil
}

func (c ClusterConfig) RedisEnabled() bool {
	return c.Redis != nil
}

func clusterConfigHook() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.Map || t != reflect.TypeOf(&ClusterConfig{}) {
			return data, nil
		}

		raw, ok := data.(map[string]interface{})
		if !ok {
			return data, nil
		}

		clusterConfig := &ClusterConfig{}
		if enabled, ok := raw["enabled"]; ok {
			if err := mapstructure.WeakDecode(enabled, &clusterConfig.Enabled); err != nil {
				return nil, err
			}
		}

		if opts, ok := raw["redis"].(map[string]interface{}); ok && opts != nil {
			redisOptions := &RedisConfig{}
			if err := mapstructure.WeakDecode(opts, redisOptions); err != nil {
				return nil, err
			}

			if err := redisOptions.Validate(); err != nil {
				return nil, err
			}

			clusterConfig.Redis = redisOptions
		}

		return clusterConfig, nil
	}
}
