// Package sdk resolves the Dart toolchain version and the artifact URLs
// derived from it.
package sdk

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// VersionFileName is the file at the root of an SDK holding its version
const VersionFileName = "version"

// SummaryFileName is the precompiled framework summary artifact
const SummaryFileName = "flutter_web.sum"

// ReadVersionFile reads and validates the version stored in path
func ReadVersionFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read sdk version file: %w", err)
	}

	// The file may carry a trailing channel note, e.g. "3.5.0 (stable)"
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", fmt.Errorf("sdk version file %s is empty", path)
	}

	v, err := ParseVersion(fields[0])
	if err != nil {
		return "", err
	}

	return v.Original(), nil
}

// ParseVersion validates version as a semantic version
func ParseVersion(version string) (*semver.Version, error) {
	v, err := semver.NewVersion(strings.TrimSpace(version))
	if err != nil {
		return nil, fmt.Errorf("invalid sdk version %q: %w", version, err)
	}

	return v, nil
}

// Resolve picks the toolchain version. An explicit version wins, then
// versionFile, then the version file at the root of sdkPath.
func Resolve(version, versionFile, sdkPath string) (string, error) {
	if version != "" {
		v, err := ParseVersion(version)
		if err != nil {
			return "", err
		}

		return v.Original(), nil
	}

	if versionFile == "" && sdkPath != "" {
		versionFile = filepath.Join(sdkPath, VersionFileName)
	}

	if versionFile == "" {
		return "", fmt.Errorf("sdk version is not configured: set sdk_version, sdk_version_file or sdk_path")
	}

	return ReadVersionFile(versionFile)
}

// ModulesBaseURL returns the URL that compiled modules for version are served from
func ModulesBaseURL(base, version string) string {
	return strings.TrimRight(base, "/") + "/" + version + "/"
}

// SummaryURL returns the URL of the framework summary for version
func SummaryURL(base, version string) string {
	return ModulesBaseURL(base, version) + SummaryFileName
}
