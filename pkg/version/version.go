// Package version reports build information, set at link time with
// -ldflags "-X github.com/mixbaba/mixbaba/pkg/version.gitCommit=...".
package version

import (
	"runtime"
	"runtime/debug"
)

var (
	gitCommit = ""
	buildDate = ""
)

type Info struct {
	GitCommit string `json:"gitCommit" yaml:"gitCommit"`
	BuildDate string `json:"buildDate" yaml:"buildDate"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get falls back to the VCS stamp embedded by the go tool when the commit was
// not set at link time.
func Get() Info {
	info := Info{
		GitCommit: gitCommit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.GitCommit == "" {
		info.GitCommit = "unknown"
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" {
					info.GitCommit = s.Value
				}
			}
		}
	}
	return info
}
