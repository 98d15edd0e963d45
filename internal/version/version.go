// Package version holds build-time version information.
// The variables are overridden at link time:
//
//	go build -ldflags "-X github.com/HollowOak/sitewatch/internal/version.Version=v0.2.0"
package version

import "fmt"

var (
	// Version is the semantic version of this build.
	Version = "0.1.0-dev"
	// Commit is the git commit hash the binary was built from.
	Commit = "unknown"
	// Date is the build timestamp.
	Date = "unknown"
)

// Short returns just the version string, for headers and log lines.
func Short() string {
	return Version
}

// Info returns a human-readable version line for the CLI.
func Info() string {
	return fmt.Sprintf("sitewatch %s (commit %s, built %s)", Version, Commit, Date)
}

// Map returns all build information as a string map for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	}
}
