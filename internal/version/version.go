// Package version reports the version of irgen linked into the binary.
package version

import (
	"runtime/debug"
	"strings"
)

// Default is the version reported when the module version is unknown, as in
// tests and builds from a work tree.
const Default = "dev"

const modulePath = "github.com/tetratelabs/irgen"

// GetVersion returns the version of irgen in the go.mod of the main module,
// or Default. Compilation caches are scoped to this version.
func GetVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Default
	}
	return versionIn(info)
}

func versionIn(info *debug.BuildInfo) string {
	if info.Main.Path == modulePath {
		return normalize(info.Main.Version)
	}
	for _, dep := range info.Deps {
		if dep.Path != modulePath {
			continue
		}
		if dep.Replace != nil && dep.Replace.Version != "" {
			return normalize(dep.Replace.Version)
		}
		return normalize(dep.Version)
	}
	return Default
}

func normalize(v string) string {
	// (devel) is what the go command reports for the main module.
	if v == "" || v == "(devel)" {
		return Default
	}
	return strings.TrimSpace(v)
}
