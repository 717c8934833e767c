// Package workspace provisions the ephemeral directory a compile runs in.
//
// A workspace is created once per orchestrator and holds a package manifest,
// a package index, the entry point folder and, after dependency resolution,
// the lock file and the resolved dependency directory. The directory is named
// pcs-<uuid> under the configured base directory and is removed recursively on
// Dispose.
//
// Framework support is initialized lazily: the first compile importing the UI
// framework regenerates the manifest with the framework dependency set,
// resolves dependencies and downloads the precompiled framework summary.
package workspace
