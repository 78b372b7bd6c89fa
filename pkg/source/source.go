// Package source manages the shim source tree: cloning it on first use
// and refusing to touch a tree that points at a different upstream.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/shimforge/shimforge/pkg/runner"
)

// Present reports whether path already holds a git checkout.
func Present(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil && info.IsDir()
}

// Origin returns the origin remote URL of the checkout at path.
func Origin(ctx context.Context, r runner.Runner, path string) (string, error) {
	out, err := r.Output(ctx, "", "git", "-C", path, "remote", "get-url", "origin")
	if err != nil {
		return "", errors.Wrapf(err, "failed to read origin of %s", path)
	}
	return strings.TrimSpace(out), nil
}

// Ensure makes the source tree available at path. A missing tree is
// cloned from upstream with submodules; an existing tree must have
// upstream as its origin. An origin mismatch means the directory belongs
// to something else entirely and is fatal, not a condition to repair.
func Ensure(ctx context.Context, r runner.Runner, path, upstream string) error {
	if Present(path) {
		origin, err := Origin(ctx, r, path)
		if err != nil {
			return err
		}
		if origin != upstream {
			return fmt.Errorf("source tree %s has origin %s, expected %s", path, origin, upstream)
		}
		log.Debugf("source tree already present at %s", path)
		return nil
	}

	log.Infof("cloning %s into %s", upstream, path)
	return r.Run(ctx, "", "git", "clone", "--recurse-submodules", upstream, path)
}
