package shared

import "fmt"

// Build metadata, overridden with -ldflags "-X".
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo formats the build metadata for the named binary.
func VersionInfo(binary string) string {
	return fmt.Sprintf("%s %s (build: %s, commit: %s)", binary, Version, BuildTime, GitCommit)
}
