package config

import (
	"os"
	"path/filepath"
)

const (
	localConfigName  = ".pcs"
	globalConfigName = "config"
)

// Searched in order, so .pcs.yml shadows .pcs.json in the same directory.
var configExtensions = []string{"yml", "yaml", "json", "toml"}

// FindLocalConfig returns the nearest .pcs.* file in dir or any of its
// parents, or "" when there is none.
func FindLocalConfig(dir string) string {
	for {
		if path := configIn(dir, localConfigName); path != "" {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}

		dir = parent
	}
}

// FindGlobalConfig returns the user's config.* file, or "" when there is none
func FindGlobalConfig() string {
	dir := globalConfigDir()
	if dir == "" {
		return ""
	}

	return configIn(dir, globalConfigName)
}

// globalConfigDir is $PCS_CONFIG_HOME, falling back to <user config dir>/pcs
func globalConfigDir() string {
	if dir := os.Getenv(EnvPrefix + "_CONFIG_HOME"); dir != "" {
		return dir
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	return filepath.Join(base, "pcs")
}

func configIn(dir, name string) string {
	for _, ext := range configExtensions {
		path := filepath.Join(dir, name+"."+ext)

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}

	return ""
}
