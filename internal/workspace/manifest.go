package workspace

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PackageName is the package every sample is compiled as
const PackageName = "playground_sample"

// Manifest is the subset of pubspec.yaml the workspace writes
type Manifest struct {
	Name                string            `yaml:"name"`
	Environment         map[string]string `yaml:"environment,omitempty"`
	Dependencies        map[string]any    `yaml:"dependencies,omitempty"`
	DependencyOverrides map[string]any    `yaml:"dependency_overrides,omitempty"`
}

var flutterSDK = map[string]string{"sdk": "flutter"}

// MinimalManifest names the package and nothing else
func MinimalManifest() *Manifest {
	return &Manifest{Name: PackageName}
}

// FrameworkManifest declares the framework and the pinned third-party
// packages samples may import
func FrameworkManifest() *Manifest {
	return &Manifest{
		Name: PackageName,
		Environment: map[string]string{
			"sdk": ">=3.0.0 <4.0.0",
		},
		Dependencies: map[string]any{
			"flutter":             flutterSDK,
			"flutter_test":        flutterSDK,
			"flutter_web_plugins": flutterSDK,
			"characters":          "1.3.0",
			"collection":          "1.18.0",
			"http":                "1.2.2",
			"intl":                "0.19.0",
			"js":                  "0.7.1",
			"meta":                "1.15.0",
			"path":                "1.9.0",
			"vector_math":         "2.1.4",
		},
		DependencyOverrides: map[string]any{
			"async": "2.11.0",
		},
	}
}

// writeManifest encodes m to path
func writeManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// readManifest decodes the manifest at path
func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	return &m, nil
}
