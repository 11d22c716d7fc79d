// Package version reports the version of singlepass a binary was built from.
package version

import (
	"runtime/debug"
	"strings"
)

// Default is the version reported when neither -ldflags nor the build info carry one.
const Default = "dev"

const modulePath = "github.com/tetratelabs/singlepass"

// These are overridden at link time, e.g.
// -ldflags "-X github.com/tetratelabs/singlepass/internal/version.version=v1.0.0"
var (
	version   string
	commit    string
	buildTime string
)

// GetSinglepassVersion returns the version of singlepass, either set with -ldflags, read from the module
// which depends on it or read from the main module.
func GetSinglepassVersion() (ret string) {
	if version != "" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Default
	}
	return versionFromBuildInfo(info)
}

func versionFromBuildInfo(info *debug.BuildInfo) string {
	for _, dep := range info.Deps {
		// The replaced module path is seen when built from a downstream module with a replace directive.
		if strings.HasPrefix(dep.Path, modulePath) {
			if dep.Replace != nil && dep.Replace.Version != "" {
				return dep.Replace.Version
			}
			return dep.Version
		}
	}
	if info.Main.Path == modulePath && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Default
}

// Commit returns the VCS revision, if known.
func Commit() string {
	if commit != "" {
		return commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		return setting(info, "vcs.revision")
	}
	return ""
}

// BuildTime returns the time of the commit the binary was built from, if known.
func BuildTime() string {
	if buildTime != "" {
		return buildTime
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		return setting(info, "vcs.time")
	}
	return ""
}

func setting(info *debug.BuildInfo, key string) string {
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}
