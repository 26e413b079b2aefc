package config

import (
	"errors"
	"time"

	"github.com/docker/go-units"
)

var _ Defaults = (*ThumbnailConfig)(nil)
var _ Validator = (*ThumbnailConfig)(nil)

type ThumbnailConfig struct {
	MaxDimension   int           `mapstructure:"max_dimension"`
	MaxPixels      int64         `mapstructure:"max_pixels"`
	Quality        int           `mapstructure:"quality"`
	VideoPrefix    int64         `mapstructure:"video_prefix"`
	FrameOffset    string        `mapstructure:"frame_offset"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	ExtractTimeout time.Duration `mapstructure:"extract_timeout"`
	FFmpegPath     string        `mapstructure:"ffmpeg_path"`
	ScratchDir     string        `mapstructure:"scratch_dir"`
}

func (t ThumbnailConfig) Defaults() map[string]any {
	return map[string]any{
		"max_dimension":   400,
		"max_pixels":      40_000_000,
		"quality":         82,
		"video_prefix":    10 * units.MiB,
		"frame_offset":    "1",
		"fetch_timeout":   "30s",
		"extract_timeout": "30s",
		"ffmpeg_path":     "ffmpeg",
		"scratch_dir":     "",
	}
}

func (t ThumbnailConfig) Validate() error {
	if t.MaxDimension <= 0 {
		return errors.New("core.thumbnail.max_dimension must be positive")
	}
	if t.MaxPixels <= 0 {
		return errors.New("core.thumbnail.max_pixels must be positive")
	}
	if t.Quality < 1 || t.Quality > 100 {
		return errors.New("core.thumbnail.quality must be between 1 and 100")
	}
	if t.VideoPrefix <= 0 {
		return errors.New("core.thumbnail.video_prefix must be positive")
	}
	if t.FetchTimeout <= 0 || t.ExtractTimeout <= 0 {
		return errors.New("core.thumbnail timeouts must be positive")
	}
	if t.FFmpegPath == "" {
		return errors.New("core.thumbnail.ffmpeg_path is required")
	}

	return nil
}
