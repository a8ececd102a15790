package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestInitConfig_Success(t *testing.T) {
	tmp := t.TempDir()
	withXDGConfigHome(t, tmp)

	path, err := InitConfig(false)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	contentStr := string(content)
	for _, section := range []string{"# PJRmi Configuration File", "logging:", "server:", "workers:", "shared_memory:", "global_lock:"} {
		if !strings.Contains(contentStr, section) {
			t.Errorf("config file missing section: %s", section)
		}
	}

	var cfg Config
	require.NoError(t, yaml.Unmarshal(content, &cfg))
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	tmp := t.TempDir()
	withXDGConfigHome(t, tmp)

	_, err := InitConfig(false)
	require.NoError(t, err)

	_, err = InitConfig(false)
	require.Error(t, err)

	_, err = InitConfig(true)
	require.NoError(t, err)
}

func TestInitConfigToPath_Success(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "nested", "pjrmid.yaml")

	err := InitConfigToPath(path, false)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var cfg Config
	require.NoError(t, yaml.Unmarshal(content, &cfg))
}

func TestInitConfigToPath_AlreadyExists(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "pjrmid.yaml")

	require.NoError(t, InitConfigToPath(path, false))

	err := InitConfigToPath(path, false)
	require.Error(t, err)

	require.NoError(t, InitConfigToPath(path, true))
}
