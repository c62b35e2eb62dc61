package buildinfo

import (
	"strings"
	"testing"
)

// stamp sets the ldflags variables for one test.
func stamp(t *testing.T, version, commit, built string) {
	t.Helper()
	old := [3]string{Version, Commit, BuildTime}
	Version, Commit, BuildTime = version, commit, built
	t.Cleanup(func() { Version, Commit, BuildTime = old[0], old[1], old[2] })
}

func TestStrings(t *testing.T) {
	tests := []struct {
		name       string
		version    string
		commit     string
		built      string
		wantString string
		wantAgent  string
	}{
		{"Unstamped", "dev", "unknown", "unknown", "dev (unknown) built at unknown", "shardmesh-cli/dev"},
		{"Release", "v1.2.0", "abc1234", "2026-01-02T03:04:05Z", "v1.2.0 (abc1234) built at 2026-01-02T03:04:05Z", "shardmesh-cli/v1.2.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stamp(t, tt.version, tt.commit, tt.built)

			if got := String(); got != tt.wantString {
				t.Errorf("String() = %q, want %q", got, tt.wantString)
			}
			if got := UserAgent("shardmesh-cli"); got != tt.wantAgent {
				t.Errorf("UserAgent() = %q, want %q", got, tt.wantAgent)
			}
			if got, want := Banner("shardmesh-master"), "shardmesh-master "+tt.wantString+" "+GoVersion; got != want {
				t.Errorf("Banner() = %q, want %q", got, want)
			}

			info := Get()
			if info.Version != tt.version || info.Commit != tt.commit || info.BuildTime != tt.built {
				t.Errorf("Get() = %+v", info)
			}
		})
	}
}

func TestGoVersion(t *testing.T) {
	if !strings.HasPrefix(GoVersion, "go") && !strings.HasPrefix(GoVersion, "devel") {
		t.Errorf("GoVersion = %q, want a toolchain version", GoVersion)
	}
	if Get().GoVersion != GoVersion {
		t.Errorf("Get().GoVersion = %q", Get().GoVersion)
	}
}
