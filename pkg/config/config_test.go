package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_InstallsDefaults(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "grayhound")

	cfg, err := loadWithLocal(configDir, "")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(configDir, "config"))
	require.NoError(t, err)
	embedded, err := DefaultsFS().ReadFile("defaults/config")
	require.NoError(t, err)
	assert.Equal(t, string(embedded), string(data))

	assert.Equal(t, configDir, cfg.ConfigDir())
	assert.Empty(t, cfg.LocalDir())
	assert.Equal(t, "ws://localhost:8765", cfg.AgentURL)
	assert.Equal(t, "0,255,255", cfg.Colors.Scanning)
}

func TestLoad_KeepsExistingConfig(t *testing.T) {
	configDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config"), []byte("language = ja\n"), 0o600))

	cfg, err := loadWithLocal(configDir, "")
	require.NoError(t, err)
	assert.Equal(t, "ja", cfg.Language)

	data, err := os.ReadFile(filepath.Join(configDir, "config"))
	require.NoError(t, err)
	assert.Equal(t, "language = ja\n", string(data), "existing config must not be overwritten")
}

func TestLoad_LocalOverride(t *testing.T) {
	configDir := t.TempDir()
	localDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config"), []byte("min_risk_score = 6\ncolor_warn = #010203\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(localDir, "config"), []byte("min_risk_score = 2\n"), 0o600))

	cfg, err := loadWithLocal(configDir, localDir)
	require.NoError(t, err)
	assert.Equal(t, localDir, cfg.LocalDir())
	assert.Equal(t, 2, cfg.MinRiskScore)
	assert.Equal(t, "1,2,3", cfg.Colors.Warn)
}

func TestLoad_InvalidConfig(t *testing.T) {
	configDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config"), []byte("min_risk_score = 42\n"), 0o600))

	_, err := loadWithLocal(configDir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load values")
}

func TestLoad_UsesWorkingDirLocal(t *testing.T) {
	wd := t.TempDir()
	t.Chdir(wd)
	require.NoError(t, os.MkdirAll(filepath.Join(wd, ".grayhound"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(wd, ".grayhound", "config"), []byte("language = zh\n"), 0o600))

	cfg, err := Load(filepath.Join(wd, "global"))
	require.NoError(t, err)
	assert.Equal(t, ".grayhound", cfg.LocalDir())
	assert.Equal(t, "zh", cfg.Language)
}

func TestConfig_IgnorePath(t *testing.T) {
	cfg := &Config{configDir: "/etc/gh"}

	cfg.IgnoreFile = "ignore.yml"
	assert.Equal(t, filepath.Join("/etc/gh", "ignore.yml"), cfg.IgnorePath())

	cfg.IgnoreFile = "/var/lib/ignore.yml"
	assert.Equal(t, "/var/lib/ignore.yml", cfg.IgnorePath())

	cfg.IgnoreFile = ""
	assert.Empty(t, cfg.IgnorePath())
}

func TestConfig_NotifyParams(t *testing.T) {
	cfg := &Config{}
	cfg.Notify.Channels = []string{"slack"}
	assert.Equal(t, []string{"slack"}, cfg.NotifyParams().Channels)
}

func TestDefaultConfigDir(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	assert.Equal(t, filepath.Join("/home/tester", ".config", "grayhound"), DefaultConfigDir())
}

func TestDefaultsInstaller_Install_ExistingDirNoConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, newDefaultsInstaller(DefaultsFS()).Install(dir))
	_, err := os.Stat(filepath.Join(dir, "config"))
	require.NoError(t, err)
}
