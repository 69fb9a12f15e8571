package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarchan/tarchan/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
server:
  base_url: https://channels.example.com
storage:
  bucket: tarballs
`

func TestLoad(t *testing.T) {
	t.Run("minimal config file plus defaults", func(t *testing.T) {
		path := writeConfigFile(t, minimalConfig)

		cfg, err := config.Load([]string{path}, nil)
		require.NoError(t, err)

		assert.Equal(t, ":3000", cfg.Server.Listen)
		assert.Equal(t, "https://channels.example.com", cfg.Server.BaseURL)
		assert.Equal(t, "tarballs", cfg.Storage.Bucket)
		assert.Equal(t, "us-east-1", cfg.Storage.Region)
		assert.True(t, cfg.Storage.UsePathStyle)
		assert.Equal(t, 600, cfg.Storage.PresignTTLSeconds)
		assert.Equal(t, 30, cfg.Registry.RefreshIntervalSeconds)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Auth.Enabled())
		assert.False(t, cfg.CORS.Enabled)
	})

	t.Run("full config file", func(t *testing.T) {
		path := writeConfigFile(t, `
server:
  listen: ":8080"
  base_url: https://dl.example.com/
storage:
  endpoint: http://localhost:9000
  region: eu-west-1
  bucket: artifacts
  access_key_id: minioadmin
  secret_access_key: minioadmin
  use_path_style: true
  presign_ttl: 120
registry:
  refresh_interval: 5
auth:
  public_key_file: /etc/tarchan/key.pem
log:
  level: debug
`)

		cfg, err := config.Load([]string{path}, nil)
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.Server.Listen)
		assert.Equal(t, "http://localhost:9000", cfg.Storage.Endpoint)
		assert.Equal(t, "eu-west-1", cfg.Storage.Region)
		assert.Equal(t, 120, cfg.Storage.PresignTTLSeconds)
		assert.Equal(t, 5, cfg.Registry.RefreshIntervalSeconds)
		assert.True(t, cfg.Auth.Enabled())
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfigFile(t, minimalConfig)
		t.Setenv("TARCHAN_STORAGE_BUCKET", "from-env")
		t.Setenv("TARCHAN_LOG_LEVEL", "warn")

		cfg, err := config.Load([]string{path}, nil)
		require.NoError(t, err)

		assert.Equal(t, "from-env", cfg.Storage.Bucket)
		assert.Equal(t, "warn", cfg.Log.Level)
	})

	t.Run("changed flags override environment", func(t *testing.T) {
		path := writeConfigFile(t, minimalConfig)
		t.Setenv("TARCHAN_STORAGE_BUCKET", "from-env")

		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("bucket", "", "bucket name")
		flags.String("listen", "", "listen address")
		require.NoError(t, flags.Parse([]string{"--bucket", "from-flag"}))

		cfg, err := config.Load([]string{path}, flags)
		require.NoError(t, err)

		assert.Equal(t, "from-flag", cfg.Storage.Bucket)
		// --listen was declared but never set, so the default survives.
		assert.Equal(t, ":3000", cfg.Server.Listen)
	})

	t.Run("later files override earlier ones", func(t *testing.T) {
		base := writeConfigFile(t, minimalConfig)
		override := writeConfigFile(t, "storage:\n  bucket: staging\n")

		cfg, err := config.Load([]string{base, override}, nil)
		require.NoError(t, err)

		assert.Equal(t, "staging", cfg.Storage.Bucket)
		assert.Equal(t, "https://channels.example.com", cfg.Server.BaseURL)
	})

	t.Run("missing bucket fails validation", func(t *testing.T) {
		path := writeConfigFile(t, "server:\n  base_url: https://channels.example.com\n")

		_, err := config.Load([]string{path}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validate config")
	})

	t.Run("missing base_url fails validation", func(t *testing.T) {
		path := writeConfigFile(t, "storage:\n  bucket: tarballs\n")

		_, err := config.Load([]string{path}, nil)
		require.Error(t, err)
	})

	t.Run("malformed base_url fails validation", func(t *testing.T) {
		path := writeConfigFile(t, `
server:
  base_url: not a url
storage:
  bucket: tarballs
`)

		_, err := config.Load([]string{path}, nil)
		require.Error(t, err)
	})

	t.Run("out-of-range presign ttl fails validation", func(t *testing.T) {
		path := writeConfigFile(t, minimalConfig+"  presign_ttl: 9999999\n")

		_, err := config.Load([]string{path}, nil)
		require.Error(t, err)
	})

	t.Run("invalid log level fails validation", func(t *testing.T) {
		path := writeConfigFile(t, minimalConfig+"log:\n  level: loud\n")

		_, err := config.Load([]string{path}, nil)
		require.Error(t, err)
	})
}

func TestStorageConfig_S3Config(t *testing.T) {
	path := writeConfigFile(t, `
server:
  base_url: https://channels.example.com
storage:
  endpoint: http://localhost:9000
  region: eu-west-1
  bucket: artifacts
  access_key_id: id
  secret_access_key: secret
  use_path_style: true
`)

	cfg, err := config.Load([]string{path}, nil)
	require.NoError(t, err)

	s3cfg := cfg.Storage.S3Config()
	assert.Equal(t, "http://localhost:9000", s3cfg.Endpoint)
	assert.Equal(t, "eu-west-1", s3cfg.Region)
	assert.Equal(t, "id", s3cfg.AccessKeyID)
	assert.Equal(t, "secret", s3cfg.SecretAccessKey)
	assert.True(t, s3cfg.UsePathStyle)
}

func TestPresignTTLDuration(t *testing.T) {
	path := writeConfigFile(t, minimalConfig)

	cfg, err := config.Load([]string{path}, nil)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, time.Duration(cfg.Storage.PresignTTLSeconds)*time.Second)
}
