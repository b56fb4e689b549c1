// Package version holds build metadata, set at link time:
//
//	go build -ldflags "-X github.com/ramonehamilton/competitor-discovery/internal/version.Version=v1.2.3 \
//	  -X github.com/ramonehamilton/competitor-discovery/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release version, "dev" for local builds.
	Version = "dev"

	// Commit is the source revision the binary was built from.
	Commit = "unknown"

	// BuildDate is when the binary was built.
	BuildDate = "unknown"
)

// GetVersion returns the release version.
func GetVersion() string {
	return Version
}

// String returns the full build description printed by the version command.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s/%s)", Version, Commit, BuildDate, runtime.GOOS, runtime.GOARCH)
}
