// Package patch applies the build-configuration edits shim needs for a
// debuggable build. Each patch is guarded by a text search so repeated
// setup runs never duplicate a line.
package patch

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Patch is one idempotent line addition. Guard is the substring whose
// presence means the patch is already applied; Line is what gets
// appended when it is not.
type Patch struct {
	Name  string
	Guard string
	Line  string
}

// MakeDefaults are the three independent edits to shim's Make.defaults:
// debug symbols, the debug-symbol install directory, and the export line
// that makes both visible to sub-makes.
var MakeDefaults = []Patch{
	{
		Name:  "debug symbols",
		Guard: "OPTIMIZATIONS = -g -Og",
		Line:  "OPTIMIZATIONS = -g -Og",
	},
	{
		Name:  "debug directory",
		Guard: "DEBUGDIR",
		Line:  "DEBUGDIR = /usr/lib/debug/",
	},
	{
		Name:  "export line",
		Guard: "export OPTIMIZATIONS DEBUGDIR",
		Line:  "export OPTIMIZATIONS DEBUGDIR",
	},
}

// Apply appends every patch whose guard is absent from the file and
// returns the names of the patches it applied. The file is written once,
// and only when at least one patch was missing.
func Apply(path string, patches []Patch) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	content := string(data)
	var applied []string
	for _, p := range patches {
		if strings.Contains(content, p.Guard) {
			continue
		}
		if !strings.HasSuffix(content, "\n") && content != "" {
			content += "\n"
		}
		content += p.Line + "\n"
		applied = append(applied, p.Name)
	}

	if len(applied) == 0 {
		return nil, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	if err := os.WriteFile(path, []byte(content), info.Mode().Perm()); err != nil {
		return nil, errors.Wrapf(err, "failed to write %s", path)
	}
	return applied, nil
}
