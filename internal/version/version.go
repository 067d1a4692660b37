// Package version reports the build identity of the corpusbuild binary.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/corpusbuild/internal/version.Version=v1.0.0".
var Version = "unknown"

// Build metadata, set the same way.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Resolve returns the version, falling back to the main module version
// recorded by the Go toolchain when no ldflags were given.
func Resolve() string {
	if Version != "unknown" && Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// String renders a one-line summary for the version command.
func String() string {
	return fmt.Sprintf("corpusbuild %s (commit %s, built %s)", Resolve(), GitCommit, BuildTime)
}
