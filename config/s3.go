package config

import (
	"errors"
)

var _ Validator = (*S3Config)(nil)
var _ Defaults = (*S3Config)(nil)

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	PathStyle bool   `mapstructure:"path_style"`
}

func (s S3Config) Defaults() map[string]any {
	return map[string]any{
		"bucket":     "",
		"endpoint":   "",
		"region":     "us-east-1",
		"access_key": "",
		"secret_key": "",
		"path_style": true,
	}
}

func (s S3Config) Validate() error {
	if s.Bucket == "" {
		return errors.New("core.storage.s3.bucket is required")
	}
	if s.Endpoint == "" {
		return errors.New("core.storage.s3.endpoint is required")
	}
	if s.Region == "" {
		return errors.New("core.storage.s3.region is required")
	}
	if s.AccessKey == "" {
		return errors.New("core.storage.s3.access_key is required")
	}
	if s.SecretKey == "" {
		return errors.New("core.storage.s3.secret_key is required")
	}
	return nil
}
