package config

import "errors"

var _ Defaults = (*LogConfig)(nil)
var _ Validator = (*LogConfig)(nil)

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func (l LogConfig) Defaults() map[string]interface{} {
	return map[string]interface{}{
		"level": "info",
	}
}

func (l LogConfig) Validate() error {
	switch l.Level {
	case "", "debug", "info", "warn", "error", "fatal", "panic":
		return nil
	}

	return errors.New("core.log.level must be one of: debug, info, warn, error, fatal, panic")
}
