// Package version reports how the running binary was built.
//
// Release builds stamp the version through the linker:
//
//	go build -ldflags "-X github.com/smazurov/mediagraph/internal/version.Version=v0.3.0 \
//	  -X github.com/smazurov/mediagraph/internal/version.GitCommit=$(git rev-parse --short HEAD) \
//	  -X github.com/smazurov/mediagraph/internal/version.BuildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Plain go build and go install fall back to the VCS stamp the toolchain embeds.
package version

import (
	"runtime"
	"runtime/debug"
)

const unknown = "unknown"

// Set via -ldflags -X.
var (
	Version   = "dev"
	GitCommit = unknown
	BuildDate = unknown
)

// Info is the build metadata served by /api/version.
type Info struct {
	Version   string
	Module    string
	GitCommit string
	BuildDate string
	// Modified is true when the binary was built from a dirty work tree.
	Modified  bool
	GoVersion string
	Platform  string
}

// Get returns the build information, filling commit and date from the
// embedded VCS stamp when the linker did not set them.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fromBuildInfo(&info, bi)
	}
	return info
}

func fromBuildInfo(info *Info, bi *debug.BuildInfo) {
	info.Module = bi.Main.Path
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == unknown {
				info.GitCommit = shortRevision(s.Value)
			}
		case "vcs.time":
			if info.BuildDate == unknown {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// String returns the application version string.
func String() string {
	return Get().Version
}
