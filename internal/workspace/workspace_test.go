package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CreatesLayout(t *testing.T) {
	base := t.TempDir()

	ws, err := New(base)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Dispose() })

	assert.Equal(t, base, filepath.Dir(ws.Path()))
	assert.True(t, strings.HasPrefix(filepath.Base(ws.Path()), "pcs-"))

	index, err := os.ReadFile(ws.PackagesFile())
	require.NoError(t, err)
	assert.Equal(t, "playground_sample:lib/\n", string(index))

	m, err := readManifest(ws.ManifestFile())
	require.NoError(t, err)
	assert.Equal(t, PackageName, m.Name)
	assert.Empty(t, m.Dependencies)

	assert.DirExists(t, filepath.Join(ws.Path(), "lib"))
	assert.DirExists(t, filepath.Join(ws.Path(), "web"))
	assert.NoFileExists(t, ws.LockFile())
	assert.Equal(t, FrameworkUninitialized, ws.State())
}

func TestNew_UniqueDirectories(t *testing.T) {
	base := t.TempDir()

	a, err := New(base)
	require.NoError(t, err)
	b, err := New(base)
	require.NoError(t, err)

	assert.NotEqual(t, a.Path(), b.Path())
}

func TestAccessors(t *testing.T) {
	ws, err := New(t.TempDir())
	require.NoError(t, err)

	root := ws.Path()
	assert.Equal(t, filepath.Join(root, "pubspec.yaml"), ws.ManifestFile())
	assert.Equal(t, filepath.Join(root, "pubspec.lock"), ws.LockFile())
	assert.Equal(t, filepath.Join(root, ".packages"), ws.PackagesFile())
	assert.Equal(t, filepath.Join(root, ".dart_tool"), ws.DependencyDir())
	assert.Equal(t, filepath.Join(root, "flutter_web.sum"), ws.SummaryFile())
	assert.Equal(t, filepath.Join(root, "web", "main.dart"), ws.EntryPoint())
	assert.Equal(t, filepath.Join(root, "build"), ws.OutputDir())
}

func TestDispose_Idempotent(t *testing.T) {
	ws, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, ws.Dispose())
	assert.NoDirExists(t, ws.Path())

	assert.NoError(t, ws.Dispose())
}

func TestFrameworkManifest(t *testing.T) {
	m := FrameworkManifest()

	assert.Equal(t, PackageName, m.Name)
	for _, dep := range []string{"flutter", "flutter_test", "flutter_web_plugins"} {
		assert.Equal(t, flutterSDK, m.Dependencies[dep], dep)
	}

	path := filepath.Join(t.TempDir(), "pubspec.yaml")
	require.NoError(t, writeManifest(path, m))

	decoded, err := readManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m.Environment, decoded.Environment)
	assert.Contains(t, decoded.Dependencies, "intl")
	assert.Contains(t, decoded.DependencyOverrides, "async")
}
