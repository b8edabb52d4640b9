package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Version and Commit are set with -ldflags "-X" at release time. Builds
// without them fall back to the VCS stamp in the binary's build info.
var (
	Version = ""
	Commit  = ""
)

// stackModules are the libraries reported by Dependencies.
var stackModules = []string{
	"github.com/plgd-dev/go-coap/v3",
	"github.com/pion/dtls/v3",
}

func init() {
	var settings []debug.BuildSetting
	if info, ok := debug.ReadBuildInfo(); ok {
		settings = info.Settings
	}
	v, c := fromVCS(settings)
	if Version == "" {
		Version = v
	}
	if Commit == "" {
		Commit = c
	}
}

// fromVCS derives a dev version ("dev-YYYYMMDD" of the commit time) and a
// short commit, suffixed "-dirty" for modified trees. Missing stamps give
// a build-time version and "unknown".
func fromVCS(settings []debug.BuildSetting) (version, commit string) {
	vcs := make(map[string]string, len(settings))
	for _, s := range settings {
		vcs[s.Key] = s.Value
	}

	version = "dev-" + time.Now().Format("20060102-150405")
	if t, err := time.Parse(time.RFC3339, vcs["vcs.time"]); err == nil {
		version = "dev-" + t.Format("20060102")
	}

	commit = "unknown"
	if rev := vcs["vcs.revision"]; rev != "" {
		commit = rev[:min(len(rev), 7)]
		if vcs["vcs.modified"] == "true" {
			commit += "-dirty"
		}
	}
	return version, commit
}

// Full returns "<version> (commit: <commit>)".
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// Dependency is a module linked into the binary.
type Dependency struct {
	Path    string
	Version string
}

// Dependencies returns the linked versions of the CoAP and DTLS stacks.
// Modules missing from build info are omitted.
func Dependencies() []Dependency {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	var deps []Dependency
	for _, want := range stackModules {
		for _, dep := range info.Deps {
			if dep.Path == want {
				deps = append(deps, Dependency{Path: dep.Path, Version: dep.Version})
			}
		}
	}
	return deps
}

// Platform returns the Go runtime and target platform.
func Platform() string {
	return fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
