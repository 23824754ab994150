package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, LogTypeConsole, cfg.Logging.Type)
	assert.GreaterOrEqual(t, cfg.Processing.Workers, 1)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  type: file
  file_path: /tmp/volume-tools.log
  max_size: 5
processing:
  workers: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, cfg.Logging.Level)
	assert.Equal(t, LogTypeFile, cfg.Logging.Type)
	assert.Equal(t, "/tmp/volume-tools.log", cfg.Logging.FilePath)
	assert.Equal(t, 5, cfg.Logging.MaxSize)
	assert.Equal(t, 3, cfg.Logging.MaxBackups, "unset keys keep defaults")
	assert.Equal(t, 3, cfg.Processing.Workers)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, LogLevelWarning)
	t.Setenv(EnvWorkers, "7")
	t.Setenv(EnvCacheDir, "/var/cache/volumes")

	cfg, err := Load(writeConfig(t, "logging:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarning, cfg.Logging.Level)
	assert.Equal(t, 7, cfg.Processing.Workers)
	assert.Equal(t, "/var/cache/volumes", cfg.Processing.CacheDir)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		env   map[string]string
		noCfg bool
	}{
		{name: "missing file", noCfg: true},
		{name: "bad yaml", body: "logging: [\n"},
		{name: "invalid level", body: "logging:\n  level: verbose\n"},
		{name: "file logger without path", body: "logging:\n  type: file\n"},
		{name: "too many backups", body: "logging:\n  max_backups: 50\n"},
		{name: "zero workers", body: "processing:\n  workers: 0\n"},
		{name: "non-numeric workers env", env: map[string]string{EnvWorkers: "many"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			switch {
			case tt.noCfg:
				path = filepath.Join(t.TempDir(), "missing.yaml")
			case tt.body != "":
				path = writeConfig(t, tt.body)
			}
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
