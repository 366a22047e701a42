// Package version reports relset build metadata.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Name is the binary name used in version strings.
const Name = "relset"

// Build information, set at build time:
//
//	go build -ldflags "-X github.com/teranos/relset/version.Version=v0.3.0 \
//	  -X github.com/teranos/relset/version.CommitHash=$(git rev-parse HEAD)"
var (
	CommitHash = "dev"
	BuildTime  = "unknown"
	Version    = "dev"
)

// Info contains version and build information
type Info struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the current version information. Without ldflags, the commit
// falls back to the VCS stamp the go toolchain embeds.
func Get() Info {
	info := Info{
		Name:       Name,
		Version:    Version,
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.CommitHash == "dev" {
		if rev := vcsRevision(); rev != "" {
			info.CommitHash = rev
		}
	}
	return info
}

func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

// String returns a human-readable version string
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Short(), i.BuildTime)
}

// Short returns the first 7 characters of the commit hash
func (i Info) Short() string {
	if len(i.CommitHash) >= 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}
