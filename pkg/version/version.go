// Package version holds the scicontent build information printed by
// `scicontent version` and the --version flag.
package version

import "fmt"

// Set at build time:
//
//	go build -ldflags "-X scicontent/pkg/version.Version=v0.3.0 -X scicontent/pkg/version.Commit=$(git rev-parse --short HEAD)"
//
//nolint:gochecknoglobals // package-level vars for ldflags injection.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the build information on one line.
func String() string {
	return fmt.Sprintf("scicontent %s (commit %s, built %s)", Version, Commit, Date)
}
