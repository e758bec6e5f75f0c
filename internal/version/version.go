// Package version reports youcube's build information.
//
// Version, Commit and Date are injected at build time:
//
//	go build -ldflags "-X github.com/jmylchreest/youcube/internal/version.Version=x.y.z \
//	                   -X github.com/jmylchreest/youcube/internal/version.Commit=$(git rev-parse HEAD) \
//	                   -X github.com/jmylchreest/youcube/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Without ldflags the values fall back to what the Go toolchain embedded in the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Build-time variables injected via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// ApplicationName is the canonical name of this application.
const ApplicationName = "youcube"

// Info contains structured version information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

var (
	infoOnce sync.Once
	info     Info
)

// GetInfo returns the build information.
func GetInfo() Info {
	infoOnce.Do(func() {
		info = Info{
			Version:   Version,
			Commit:    Commit,
			Date:      Date,
			GoVersion: runtime.Version(),
			Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		}
		if bi, ok := debug.ReadBuildInfo(); ok {
			fillFromBuildInfo(&info, bi)
		}
	})
	return info
}

// fillFromBuildInfo replaces defaults that ldflags did not set.
func fillFromBuildInfo(i *Info, bi *debug.BuildInfo) {
	if i.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		i.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if i.Commit == "unknown" {
				i.Commit = s.Value
			}
		case "vcs.time":
			if i.Date == "unknown" {
				i.Date = s.Value
			}
		}
	}
}

func shortCommit(c string) (string, bool) {
	if c == "unknown" || len(c) < 8 {
		return "", false
	}
	return c[:8], true
}

// String returns a human-readable version string.
func String() string {
	i := GetInfo()
	if c, ok := shortCommit(i.Commit); ok {
		return fmt.Sprintf("%s version %s (commit: %s, built: %s, %s, %s)",
			ApplicationName, i.Version, c, i.Date, i.GoVersion, i.Platform)
	}
	return fmt.Sprintf("%s version %s (%s, %s)", ApplicationName, i.Version, i.GoVersion, i.Platform)
}

// Short returns a short version string suitable for CLI --version output.
func Short() string {
	i := GetInfo()
	if c, ok := shortCommit(i.Commit); ok {
		return fmt.Sprintf("%s %s (%s)", ApplicationName, i.Version, c)
	}
	return fmt.Sprintf("%s %s", ApplicationName, i.Version)
}
