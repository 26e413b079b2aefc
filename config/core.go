package config

import (
	"errors"
)

var _ Defaults = (*CoreConfig)(nil)
var _ Validator = (*CoreConfig)(nil)

type CoreConfig struct {
	DB             DatabaseConfig  `mapstructure:"db"`
	Domain         string          `mapstructure:"domain"`
	Port           uint            `mapstructure:"port"`
	Log            LogConfig       `mapstructure:"log"`
	Storage        StorageConfig   `mapstructure:"storage"`
	Upload         UploadConfig    `mapstructure:"upload"`
	Thumbnail      ThumbnailConfig `mapstructure:"thumbnail"`
	Cron           CronConfig      `mapstructure:"cron"`
	Clustered      *ClusterConfig  `mapstructure:"clustered"`
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
}

func (c CoreConfig) Validate() error {
	if c.Domain == "" {
		return errors.New("core.domain is required")
	}
	if c.Port == 0 {
		return errors.New("core.port is required")
	}

	return nil
}

func (c CoreConfig) Defaults() map[string]interface{} {
	return map[string]interface{}{
		"domain": "localhost",
		"port":   8080,
	}
}

func (c CoreConfig) ClusterEnabled() bool {
	return c.Clustered != nil && c.Clustered.Enabled
}
