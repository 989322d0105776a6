// Package config loads grayhound configuration: INI files merged from embedded defaults,
// the global config directory and an optional local .grayhound directory.
package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grayhound-dev/grayhound/pkg/notify"
)

//go:embed defaults/config
var defaultsFS embed.FS

// DefaultsFS returns the embedded defaults filesystem.
func DefaultsFS() embed.FS {
	return defaultsFS
}

// localDirName is the per-directory config override.
const localDirName = ".grayhound"

// Config is the merged application configuration.
type Config struct {
	Values

	configDir string // global config directory
	localDir  string // local .grayhound directory, empty if absent
}

// Load installs defaults into configDir if needed and loads the merged configuration.
// an empty configDir uses DefaultConfigDir. a .grayhound directory in the working directory
// is used as local override when present.
func Load(configDir string) (*Config, error) {
	localDir := ""
	if st, err := os.Stat(localDirName); err == nil && st.IsDir() {
		localDir = localDirName
	}
	return loadWithLocal(configDir, localDir)
}

// loadWithLocal loads configuration from the given global and local directories.
func loadWithLocal(configDir, localDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	if err := newDefaultsInstaller(defaultsFS).Install(configDir); err != nil {
		return nil, fmt.Errorf("install defaults: %w", err)
	}

	globalPath := filepath.Join(configDir, "config")
	localPath := ""
	if localDir != "" {
		localPath = filepath.Join(localDir, "config")
	}

	values, err := newValuesLoader(defaultsFS).Load(localPath, globalPath)
	if err != nil {
		return nil, fmt.Errorf("load values: %w", err)
	}

	return &Config{Values: values, configDir: configDir, localDir: localDir}, nil
}

// DefaultConfigDir returns ~/.config/grayhound, falling back to .grayhound when home is unknown.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return localDirName
	}
	return filepath.Join(home, ".config", "grayhound")
}

// ConfigDir returns the global config directory.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// LocalDir returns the local override directory, empty if none.
func (c *Config) LocalDir() string {
	return c.localDir
}

// IgnorePath returns the ignore list path; relative paths are resolved against the config directory.
func (c *Config) IgnorePath() string {
	if c.IgnoreFile == "" || filepath.IsAbs(c.IgnoreFile) {
		return c.IgnoreFile
	}
	return filepath.Join(c.configDir, c.IgnoreFile)
}

// NotifyParams returns the notification settings.
func (c *Config) NotifyParams() notify.Params {
	return c.Notify
}
