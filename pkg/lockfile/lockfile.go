// Package lockfile provides the advisory lock that keeps two mutating
// invocations (setup, install) from racing on the same output root. The
// lock is best effort: read-only operations and external editors are
// not covered.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// Acquire takes a non-blocking exclusive lock on path and returns a
// release function. A lock already held by another process fails
// immediately instead of waiting.
func Acquire(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create lock directory for %s", path)
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to lock %s", path)
	}
	if !ok {
		return nil, fmt.Errorf("another shimforge invocation holds %s", path)
	}
	return func() { fl.Unlock() }, nil
}
