package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLocalConfig(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "project")
	nested := filepath.Join(project, "samples", "hello")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	projectConfig := filepath.Join(project, ".pcs.yml")
	require.NoError(t, os.WriteFile(projectConfig, []byte("workers: 2"), 0o644))

	// json loses to yml in the same directory
	require.NoError(t, os.WriteFile(filepath.Join(project, ".pcs.json"), []byte("{}"), 0o644))

	// a directory with a config name is not a config file
	shadow := filepath.Join(nested, ".pcs.yaml")
	require.NoError(t, os.Mkdir(shadow, 0o755))

	tests := []struct {
		name string
		dir  string
		want string
	}{
		{name: "same directory", dir: project, want: projectConfig},
		{name: "walks up from nested dir", dir: nested, want: projectConfig},
		{name: "nonexistent subdirectory", dir: filepath.Join(nested, "missing"), want: projectConfig},
		{name: "not found above", dir: root, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindLocalConfig(tt.dir))
		})
	}
}

func TestFindGlobalConfig(t *testing.T) {
	t.Run("prefers PCS_CONFIG_HOME", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")
		require.NoError(t, os.WriteFile(path, []byte("workers = 3\n"), 0o644))
		t.Setenv("PCS_CONFIG_HOME", dir)

		assert.Equal(t, path, FindGlobalConfig())
	})

	t.Run("empty directory", func(t *testing.T) {
		t.Setenv("PCS_CONFIG_HOME", t.TempDir())

		assert.Empty(t, FindGlobalConfig())
	})

	t.Run("ignores local config names", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".pcs.yml"), []byte("workers: 3"), 0o644))
		t.Setenv("PCS_CONFIG_HOME", dir)

		assert.Empty(t, FindGlobalConfig())
	})
}
