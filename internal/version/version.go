// Package version carries build identity set via -ldflags, e.g.
//
//	go build -ldflags "-X .../internal/version.Version=v0.3.0"
package version

import "fmt"

var (
	// Version is the release tag, or "dev" for untagged builds.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String renders the build identity for the startup banner.
func String() string {
	return fmt.Sprintf("%s (%s, built %s)", Version, GitSHA, BuildTime)
}
