package config

import (
	"errors"
	"time"
)

var _ Defaults = (*CronConfig)(nil)
var _ Validator = (*CronConfig)(nil)

type CronConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	IdleSweep   time.Duration `mapstructure:"idle_sweep"`
	OrphanSweep time.Duration `mapstructure:"orphan_sweep"`
	LockExpiry  time.Duration `mapstructure:"lock_expiry"`
}

func (c CronConfig) Defaults() map[string]any {
	return map[string]any{
		"enabled":      true,
		"idle_sweep":   "15m",
		"orphan_sweep": "1h",
		"lock_expiry":  "1h",
	}
}

func (c CronConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.IdleSweep <= 0 || c.OrphanSweep <= 0 {
		return errors.New("core.cron sweep intervals must be positive")
	}
	if c.LockExpiry <= 0 {
		return errors.New("core.cron.lock_expiry must be positive")
	}

	return nil
}
