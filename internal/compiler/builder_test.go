package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBuilder_Tool(t *testing.T) {
	sdkPath := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(sdkPath, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sdkPath, "bin", "dart"), []byte{}, 0o755))

	tests := []struct {
		name    string
		sdkPath string
		tool    string
		want    string
	}{
		{
			name:    "no sdk path uses PATH",
			sdkPath: "",
			tool:    "dart",
			want:    "dart",
		},
		{
			name:    "tool present in sdk",
			sdkPath: sdkPath,
			tool:    "dart",
			want:    filepath.Join(sdkPath, "bin", "dart"),
		},
		{
			name:    "tool missing from sdk falls back to PATH",
			sdkPath: sdkPath,
			tool:    "dartdevc",
			want:    "dartdevc",
		},
		{
			name:    "absolute path is kept",
			sdkPath: sdkPath,
			tool:    "/usr/local/bin/dart",
			want:    "/usr/local/bin/dart",
		},
		{
			name:    "relative path is kept",
			sdkPath: sdkPath,
			tool:    "tools/dart",
			want:    "tools/dart",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCommandBuilder(tt.sdkPath)
			assert.Equal(t, tt.want, cb.Tool(tt.tool))
		})
	}
}

func TestCommandBuilder_Build(t *testing.T) {
	cb := NewCommandBuilder("")
	command := []string{"dart", "run", "build_runner", "build"}

	got := cb.Build(command, "/work/pcs-1")

	assert.Equal(t, Command{
		Name: "dart",
		Args: []string{"run", "build_runner", "build"},
		Dir:  "/work/pcs-1",
	}, got)

	// The configured command must not be aliased
	got.Args[0] = "changed"
	assert.Equal(t, "run", command[1])
}

func TestCommandBuilder_DDCArgs(t *testing.T) {
	tests := []struct {
		name string
		in   DDCInput
		want []string
	}{
		{
			name: "plain sample",
			in: DDCInput{
				PackagesFile: "/ws/.packages",
				Output:       "/tmp/x/main.dart.js",
				Source:       "/tmp/x/main.dart",
			},
			want: []string{
				"--modules=amd",
				"--packages=/ws/.packages",
				"-o", "/tmp/x/main.dart.js",
				"--module-name=dartpad_main",
				"/tmp/x/main.dart",
			},
		},
		{
			name: "framework sample with summary",
			in: DDCInput{
				Summary:      "/ws/flutter_web.sum",
				PackagesFile: "/ws/.packages",
				Output:       "/tmp/x/main.dart.js",
				Source:       "/tmp/x/main.dart",
			},
			want: []string{
				"--modules=amd",
				"-s", "/ws/flutter_web.sum",
				"--packages=/ws/.packages",
				"-o", "/tmp/x/main.dart.js",
				"--module-name=dartpad_main",
				"/tmp/x/main.dart",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewCommandBuilder("").DDCArgs(tt.in))
		})
	}
}
