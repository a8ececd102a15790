package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withXDGConfigHome(t *testing.T, dir string) {
	t.Helper()
	old := os.Getenv("XDG_CONFIG_HOME")
	require.NoError(t, os.Setenv("XDG_CONFIG_HOME", dir))
	t.Cleanup(func() {
		if old != "" {
			_ = os.Setenv("XDG_CONFIG_HOME", old)
		} else {
			_ = os.Unsetenv("XDG_CONFIG_HOME")
		}
	})
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	tmp := t.TempDir()
	withXDGConfigHome(t, tmp)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "tcp", cfg.Server.Transport)
	assert.Equal(t, 4, cfg.Workers.MinWorkers)
}

func TestLoad_FromFile(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
  format: json
  output: stderr
shutdown_timeout: 5s
server:
  transport: tcp
  handshake_timeout: 2s
workers:
  min_workers: 2
  max_workers: 16
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 2, cfg.Workers.MinWorkers)
	assert.Equal(t, 16, cfg.Workers.MaxWorkers)
}

func TestLoad_InvalidTransportFailsValidation(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
shutdown_timeout: 1s
server:
  transport: carrier_pigeon
  handshake_timeout: 1s
workers:
  min_workers: 1
`), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestMustLoad_MissingFileIsActionable(t *testing.T) {
	tmp := t.TempDir()
	withXDGConfigHome(t, tmp)

	_, err := MustLoad("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pjrmid init")
}

func TestSaveConfig_RoundTrips(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "sub", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Logging.Level = "WARN"

	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "WARN", loaded.Logging.Level)
}

func TestValidate_AllowListRequiresPathWhenEnabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.AllowList.Enabled = true
	cfg.AllowList.Path = ""

	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidate_TLSRequiresCertAndKeyWhenEnabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.TLS.Enabled = true

	err := Validate(cfg)
	assert.Error(t, err)

	cfg.TLS.CertPath = "/etc/pjrmi/cert.pem"
	cfg.TLS.KeyPath = "/etc/pjrmi/key.pem"
	assert.NoError(t, Validate(cfg))
}

func TestDefaultConfigExists(t *testing.T) {
	tmp := t.TempDir()
	withXDGConfigHome(t, tmp)

	assert.False(t, DefaultConfigExists())

	_, err := InitConfig(false)
	require.NoError(t, err)
	assert.True(t, DefaultConfigExists())
}
