package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `core:
  storage:
    s3:
      bucket: notebook
      endpoint: http://localhost:9000
      access_key: minio
      secret_key: minio123
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	file := filepath.Join(t.TempDir(), "notebook.yaml")
	require.NoError(t, os.WriteFile(file, []byte(body), 0644))

	return file
}

func loadConfig(t *testing.T, body string) (*ManagerDefault, error) {
	t.Helper()

	m, err := NewManagerFromFile(writeConfig(t, body))
	require.NoError(t, err)

	return m, m.Init()
}

func TestManagerAppliesDefaults(t *testing.T) {
	m, err := loadConfig(t, minimalConfig)
	require.NoError(t, err)

	core := m.Config().Core
	assert.Equal(t, "localhost", core.Domain)
	assert.Equal(t, uint(8080), core.Port)
	assert.Equal(t, "sqlite", core.DB.Type)
	assert.Equal(t, "notebook.db", core.DB.File)
	require.NotNil(t, core.DB.Cache)
	assert.Equal(t, CacheModeMemory, core.DB.Cache.Mode)

	assert.Equal(t, int64(40*units.MiB), core.Upload.ChunkSize)
	assert.Equal(t, int64(100*units.GiB), core.Upload.MaxSize)
	assert.Equal(t, int64(100*units.MiB), core.Upload.DirectLimit)
	assert.Equal(t, 24*time.Hour, core.Upload.SessionIdleTimeout)
	assert.Equal(t, 48*time.Hour, core.Upload.OrphanMaxAge)

	assert.Equal(t, 400, core.Thumbnail.MaxDimension)
	assert.Equal(t, int64(40_000_000), core.Thumbnail.MaxPixels)
	assert.Equal(t, 82, core.Thumbnail.Quality)
	assert.Equal(t, int64(10*units.MiB), core.Thumbnail.VideoPrefix)
	assert.Equal(t, 30*time.Second, core.Thumbnail.FetchTimeout)
	assert.Equal(t, "ffmpeg", core.Thumbnail.FFmpegPath)

	assert.Equal(t, "us-east-1", core.Storage.S3.Region)
	assert.True(t, core.Storage.S3.PathStyle)
	assert.True(t, core.Cron.Enabled)
	assert.Equal(t, 15*time.Minute, core.Cron.IdleSweep)
	assert.Equal(t, time.Hour, core.Cron.OrphanSweep)
	assert.False(t, core.ClusterEnabled())
}

func TestManagerSavesDefaults(t *testing.T) {
	file := writeConfig(t, minimalConfig)

	m, err := NewManagerFromFile(file)
	require.NoError(t, err)
	require.NoError(t, m.Init())

	saved, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(saved), "chunk_size")
	assert.Contains(t, string(saved), "video_prefix")
	assert.Equal(t, filepath.Dir(file), m.ConfigDir())
}

func TestManagerEnvOverrides(t *testing.T) {
	t.Setenv("NOTEBOOK_CORE__UPLOAD__CHUNK_SIZE", "10485760")
	t.Setenv("NOTEBOOK_CORE__PORT", "9090")

	m, err := loadConfig(t, minimalConfig)
	require.NoError(t, err)

	assert.Equal(t, int64(10*units.MiB), m.Config().Core.Upload.ChunkSize)
	assert.Equal(t, uint(9090), m.Config().Core.Port)
}

func TestManagerValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing bucket",
			body: `core:
  storage:
    s3:
      endpoint: http://localhost:9000
      access_key: a
      secret_key: b
`,
		},
		{
			name: "chunk below store minimum",
			body: minimalConfig + `  upload:
    chunk_size: 1024
`,
		},
		{
			name: "orphan age shorter than idle timeout",
			body: minimalConfig + `  upload:
    session_idle_timeout: 10h
    orphan_max_age: 1h
`,
		},
		{
			name: "unknown database",
			body: minimalConfig + `  db:
    type: postgres
`,
		},
		{
			name: "cluster without redis",
			body: minimalConfig + `  clustered:
    enabled: true
`,
		},
		{
			name: "zero sweep interval",
			body: minimalConfig + `  cron:
    idle_sweep: 0s
`,
		},
		{
			name: "bad log level",
			body: minimalConfig + `  log:
    level: loud
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(t, tt.body)
			assert.Error(t, err)
		})
	}
}

func TestManagerClusterUsesRedisCache(t *testing.T) {
	m, err := loadConfig(t, minimalConfig+`  clustered:
    enabled: true
    redis:
      address: 127.0.0.1:6380
`)
	require.NoError(t, err)

	core := m.Config().Core
	require.True(t, core.ClusterEnabled())
	assert.Equal(t, CacheModeRedis, core.DB.Cache.Mode)

	redisCfg, ok := core.DB.Cache.Options.(*RedisConfig)
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:6380", redisCfg.Address)
	assert.Same(t, core.Clustered.Redis.Client(), redisCfg.Client())
}

func TestCacheConfigHook(t *testing.T) {
	m, err := loadConfig(t, minimalConfig+`  db:
    cache:
      mode: redis
      options:
        address: cache:6379
        db: 2
`)
	require.NoError(t, err)

	cache := m.Config().Core.DB.Cache
	require.Equal(t, CacheModeRedis, cache.Mode)
	redisCfg := cache.Options.(*RedisConfig)
	assert.Equal(t, "cache:6379", redisCfg.Address)
	assert.Equal(t, 2, redisCfg.DB)
}
