// Package hostenv resolves the host platform and the execution strategy
// that follows from it: shim only builds on Linux, so a macOS host drives
// the build inside a Multipass VM while a Linux host builds natively.
package hostenv

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform is the normalized host platform identifier.
type Platform string

const (
	Linux   Platform = "linux"
	Darwin  Platform = "darwin"
	Windows Platform = "windows"
)

// Normalize maps a raw platform identifier to a Platform. The Windows
// POSIX-emulation layers (MSYS, MinGW, Cygwin) all report distinct
// identifiers but behave the same for our purposes, so they collapse to
// the single Windows constant.
func Normalize(raw string) Platform {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(s, "msys"),
		strings.HasPrefix(s, "mingw"),
		strings.HasPrefix(s, "cygwin"),
		s == "windows":
		return Windows
	case strings.HasPrefix(s, "darwin"):
		return Darwin
	default:
		return Platform(s)
	}
}

// Detect returns the normalized platform of the current host.
func Detect() Platform {
	return Normalize(runtime.GOOS)
}

// NeedsVM reports whether builds on this platform must run inside a VM.
func NeedsVM(p Platform) bool {
	return p == Darwin
}

// Validate rejects platforms that cannot host a shim build at all.
func Validate(p Platform) error {
	switch p {
	case Linux, Darwin:
		return nil
	default:
		return fmt.Errorf("unsupported host platform %q: shimforge requires Linux or macOS", p)
	}
}
