package config

import (
	"errors"
	"time"

	"github.com/docker/go-units"
)

var _ Defaults = (*UploadConfig)(nil)
var _ Validator = (*UploadConfig)(nil)

// S3 rejects every part but the last one below this size.
const minimumPartSize = 5 * units.MiB

type UploadConfig struct {
	ChunkSize          int64         `mapstructure:"chunk_size"`
	MaxSize            int64         `mapstructure:"max_size"`
	DirectLimit        int64         `mapstructure:"direct_limit"`
	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout"`
	OrphanMaxAge       time.Duration `mapstructure:"orphan_max_age"`
}

func (u UploadConfig) Defaults() map[string]any {
	return map[string]any{
		"chunk_size":           40 * units.MiB,
		"max_size":             100 * units.GiB,
		"direct_limit":         100 * units.MiB,
		"session_idle_timeout": "24h",
		"orphan_max_age":       "48h",
	}
}

func (u UploadConfig) Validate() error {
	if u.ChunkSize < minimumPartSize {
		return errors.New("core.upload.chunk_size must be at least 5MiB")
	}
	if u.MaxSize <= 0 {
		return errors.New("core.upload.max_size must be positive")
	}
	if u.DirectLimit <= 0 {
		return errors.New("core.upload.direct_limit must be positive")
	}
	if u.SessionIdleTimeout <= 0 {
		return errors.New("core.upload.session_idle_timeout must be positive")
	}
	if u.OrphanMaxAge < u.SessionIdleTimeout {
		return errors.New("core.upload.orphan_max_age must not be shorter than core.upload.session_idle_timeout")
	}

	return nil
}
