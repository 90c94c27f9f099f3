package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/netbrowser"

// buildVersion is set via -ldflags "-X pkt.systems/netbrowser/internal/version.buildVersion=...".
var buildVersion = ""

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Info describes the running binary.
type Info struct {
	Module   string
	Version  string
	Revision string
	Time     time.Time
	Dirty    bool
}

// Read collects module, version and VCS stamps from the build.
func Read() Info {
	info := Info{Module: defaultModule, Version: Current()}
	bi, ok := readBuildInfo()
	if !ok || bi == nil {
		return info
	}
	if path := strings.TrimSpace(bi.Main.Path); path != "" {
		info.Module = path
	}
	vcs := readVCS(bi)
	info.Revision = vcs.revision
	info.Time = vcs.time
	info.Dirty = vcs.modified
	return info
}

// Current returns the best available version string (without dirty suffix).
func Current() string {
	return currentFromBuildInfo(false)
}

// CurrentWithDirty returns the best available version string (including dirty suffix when available).
func CurrentWithDirty() string {
	return currentFromBuildInfo(true)
}

// Module returns the module path from build info when available.
func Module() string {
	return Read().Module
}

// Product returns "<name>/<version>" for user-agent style reporting.
func Product(name string) string {
	return name + "/" + strings.TrimPrefix(Current(), "v")
}

func currentFromBuildInfo(includeDirty bool) string {
	if strings.TrimSpace(buildVersion) != "" {
		return normalizeVersion(buildVersion, includeDirty)
	}
	bi, ok := readBuildInfo()
	if ok && bi != nil {
		if v := strings.TrimSpace(bi.Main.Version); v != "" && v != "(devel)" {
			return normalizeVersion(v, includeDirty)
		}
		if v := pseudoFromBuildInfo(bi, includeDirty); v != "" {
			return v
		}
	}
	return "v0.0.0-unknown"
}

func normalizeVersion(v string, includeDirty bool) string {
	value := strings.TrimSpace(v)
	if includeDirty {
		return value
	}
	return strings.TrimSuffix(value, "+dirty")
}

type vcsStamp struct {
	revision string
	time     time.Time
	modified bool
}

func readVCS(bi *debug.BuildInfo) vcsStamp {
	var stamp vcsStamp
	if bi == nil {
		return stamp
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			stamp.revision = setting.Value
		case "vcs.time":
			if parsed, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				stamp.time = parsed.UTC()
			}
		case "vcs.modified":
			stamp.modified = setting.Value == "true"
		}
	}
	return stamp
}

func pseudoFromBuildInfo(bi *debug.BuildInfo, includeDirty bool) string {
	stamp := readVCS(bi)
	if stamp.revision == "" || stamp.time.IsZero() {
		return ""
	}
	rev := stamp.revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	ver := "v0.0.0-" + stamp.time.Format("20060102150405") + "-" + rev
	if stamp.modified && includeDirty {
		ver += "+dirty"
	}
	return ver
}
