// Package contracts holds the types shared between the service layer and
// the HTTP, WebSocket and CLI surfaces.
package contracts

import (
	"fmt"
	"runtime"
)

const (
	// Version is the release version, also reported by /api/version
	Version = "0.4.0"

	// DataFormatVersion tags exported text files
	DataFormatVersion = "v1"

	// APIVersion covers the HTTP and WebSocket payloads
	APIVersion = "v1"
)

// Populated with -ldflags "-X specview/pkg/contracts.GitCommit=..."
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo describes the running binary
type VersionInfo struct {
	Version    string `json:"version"`
	BuildTime  string `json:"build_time"`
	GitCommit  string `json:"git_commit"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
	DataFormat string `json:"data_format"`
	APIVersion string `json:"api_version"`
}

// GetVersionInfo returns the build metadata of the running binary
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:    Version,
		BuildTime:  BuildTime,
		GitCommit:  GitCommit,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
		DataFormat: DataFormatVersion,
		APIVersion: APIVersion,
	}
}

// String formats the info for `specview --version`
func (v VersionInfo) String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s, %s)",
		v.Version, v.GitCommit, v.BuildTime, v.GoVersion, v.Platform)
}
