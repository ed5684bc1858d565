// Package version reports build information for `garde --version`.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time via -ldflags "-X".
var (
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns "garde dev (commit: abc1234, built: ..., go1.24.4)".
// Without ldflags the commit falls back to the VCS stamp of the binary.
func String() string {
	return fmt.Sprintf("garde dev (commit: %s, built: %s, %s)", commit(), BuildTime, runtime.Version())
}

func commit() string {
	c := Commit
	if c == "unknown" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					c = s.Value
				}
			}
		}
	}
	if len(c) > 7 {
		return c[:7]
	}
	return c
}
