// Package version reports what binary is running.
package version

import "runtime/debug"

// version is overridden at link time:
//
//	go build -ldflags "-X github.com/vinodismyname/sidpol/pkg/version.version=v1.2.0"
var version = "dev"

// Version returns the module version of a tagged build, else the link-time value.
func Version() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Sum != "" {
		return info.Main.Version
	}
	return version
}

// Info describes the build for health endpoints and the CLI.
type Info struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version,omitempty"`
	Revision  string `json:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
}

// Build collects Version plus the toolchain and VCS stamp when present.
func Build() Info {
	out := Info{Version: Version()}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	out.GoVersion = info.GoVersion
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Revision = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}
	return out
}
