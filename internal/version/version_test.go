package version

import (
	"runtime/debug"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/smazurov/mediagraph", Version: "v0.3.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	tests := []struct {
		name string
		in   Info
		want Info
	}{
		{
			"unstamped build uses vcs",
			Info{Version: "dev", GitCommit: unknown, BuildDate: unknown},
			Info{Version: "v0.3.0", Module: "github.com/smazurov/mediagraph", GitCommit: "0123456", BuildDate: "2026-10-01T12:00:00Z", Modified: true},
		},
		{
			"ldflags win",
			Info{Version: "v1.0.0", GitCommit: "feedbee", BuildDate: "2026-01-01"},
			Info{Version: "v1.0.0", Module: "github.com/smazurov/mediagraph", GitCommit: "feedbee", BuildDate: "2026-01-01", Modified: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			fromBuildInfo(&got, bi)
			if got != tt.want {
				t.Errorf("info = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFromBuildInfoDevel(t *testing.T) {
	info := Info{Version: "dev", GitCommit: unknown, BuildDate: unknown}
	fromBuildInfo(&info, &debug.BuildInfo{Main: debug.Module{Path: "github.com/smazurov/mediagraph", Version: "(devel)"}})
	if info.Version != "dev" || info.GitCommit != unknown {
		t.Errorf("info = %+v", info)
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.GoVersion == "" || info.Platform == "" || info.Version == "" {
		t.Errorf("info = %+v", info)
	}
}
