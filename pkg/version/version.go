package version

import (
	"fmt"
	"runtime"
)

// ServiceName identifies this bridge in health reports and outgoing requests
const ServiceName = "pma-tvoverlay"

// Build information, set via ldflags:
//
//	-X github.com/frostdev-ops/pma-tvoverlay/pkg/version.Version=1.2.0
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains all build-related information
type BuildInfo struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// GetVersion returns the release version, or dev-<short commit> for
// development builds
func GetVersion() string {
	if !IsDevBuild() {
		return Version
	}
	commit := GitCommit
	if len(commit) > 8 {
		commit = commit[:8]
	}
	if commit == "" {
		commit = "unknown"
	}
	return "dev-" + commit
}

// GetFullVersion returns a detailed version string
func GetFullVersion() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, go: %s)",
		ServiceName, GetVersion(), GitCommit, BuildDate, GoVersion)
}

// UserAgent is sent with every request to an overlay device
func UserAgent() string {
	return ServiceName + "/" + GetVersion()
}

// GetBuildInfo returns all build information
func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Service:   ServiceName,
		Version:   GetVersion(),
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: GoVersion,
	}
}

// IsDevBuild returns true if this is a development build
func IsDevBuild() bool {
	return Version == "dev"
}
