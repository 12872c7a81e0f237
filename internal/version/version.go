// Package version reports the build identity of the binary.
package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/capturebadge"

// buildVersion is set via -ldflags "-X pkt.systems/capturebadge/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running build.
type Info struct {
	Module    string
	Version   string
	Revision  string
	Modified  bool
	GoVersion string
}

// Read collects Info from build metadata.
func Read() Info {
	info, _ := debug.ReadBuildInfo()
	return fromBuildInfo(info, buildVersion)
}

// Current returns the version string without a dirty suffix.
func Current() string {
	return strings.TrimSuffix(Read().Version, "+dirty")
}

// String renders the info on one line.
func (i Info) String() string {
	var b strings.Builder
	b.WriteString(i.Module)
	b.WriteString(" ")
	b.WriteString(i.Version)
	if i.GoVersion != "" {
		b.WriteString(" (")
		b.WriteString(i.GoVersion)
		b.WriteString(")")
	}
	return b.String()
}

func fromBuildInfo(info *debug.BuildInfo, override string) Info {
	out := Info{Module: defaultModule, Version: "v0.0.0-unknown"}
	if info != nil {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			out.Module = path
		}
		out.GoVersion = info.GoVersion
		var vcsTime string
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				out.Revision = setting.Value
			case "vcs.time":
				vcsTime = setting.Value
			case "vcs.modified":
				out.Modified = setting.Value == "true"
			}
		}
		if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
			out.Version = v
		} else if v := pseudoVersion(out.Revision, vcsTime, out.Modified); v != "" {
			out.Version = v
		}
	}
	if v := strings.TrimSpace(override); v != "" {
		out.Version = v
	}
	return out
}

func pseudoVersion(revision, vcsTime string, modified bool) string {
	if revision == "" || vcsTime == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339, vcsTime)
	if err != nil {
		return ""
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	v := "v0.0.0-" + parsed.UTC().Format("20060102150405") + "-" + revision
	if modified {
		v += "+dirty"
	}
	return v
}
