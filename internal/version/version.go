// SPDX-License-Identifier: MIT

// Package version carries build metadata injected via -ldflags.
package version

var (
	// Version is the semantic version of the build.
	Version = "v0.3.0"
	// Commit is the git commit the binary was built from.
	Commit = "none"
	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)
