// Package version holds build information injected at link time.
package version

import "fmt"

// Build information, overridden with -ldflags "-X" or by the CLI at startup.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info is a snapshot of the build information.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Get returns the current build information.
func Get() Info {
	return Info{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate}
}

// Set replaces the build information. Empty values are ignored.
func Set(v, commit, date string) {
	if v != "" {
		Version = v
	}
	if commit != "" {
		GitCommit = commit
	}
	if date != "" {
		BuildDate = date
	}
}

func (i Info) String() string {
	return fmt.Sprintf("oncall-garden version %s\ncommit: %s\nbuilt: %s", i.Version, i.GitCommit, i.BuildDate)
}
