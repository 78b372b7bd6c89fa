// Package shimbuild wraps the shim Makefile targets: clean, the default
// build, and install into a staging root, plus the final copy of the
// built EFI binaries onto an EFI System Partition.
package shimbuild

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/shimforge/shimforge/pkg/config"
	"github.com/shimforge/shimforge/pkg/runner"
)

// EFIDir is the vendor directory shim installs under EFI/ on the ESP.
const EFIDir = "shimforge"

// Fixed overrides passed to every build: point the loader at grub and
// build with the devel security policy so unsigned loaders boot during
// development.
const (
	defaultLoaderVar = `DEFAULT_LOADER=\\grubx64.efi`
	develPolicyVar   = "ENABLE_SHIM_DEVEL=1"
)

// Clean runs the Makefile clean target in the source tree.
func Clean(ctx context.Context, r runner.Runner, cfg *config.Config) error {
	return r.Run(ctx, cfg.SourceRoot, "make", "clean")
}

// MakeArgs builds the argument list for the default build target: user
// arguments forwarded verbatim, then the fixed overrides.
func MakeArgs(extra []string) []string {
	args := append([]string{}, extra...)
	return append(args, defaultLoaderVar, develPolicyVar)
}

// Make runs the default build target with the user's extra variables.
func Make(ctx context.Context, r runner.Runner, cfg *config.Config, extra []string) error {
	return r.Run(ctx, cfg.SourceRoot, "make", MakeArgs(extra)...)
}

// Install recreates the staging root and runs the Makefile install
// target into it. The staging root is removed first so stale artifacts
// from earlier builds never survive. A missing source tree fails before
// anything is touched, so no partial staging directory appears.
func Install(ctx context.Context, r runner.Runner, cfg *config.Config) error {
	if _, err := os.Stat(filepath.Join(cfg.SourceRoot, "Makefile")); err != nil {
		return fmt.Errorf("no shim source tree at %s; run setup and make first", cfg.SourceRoot)
	}

	stage := cfg.InstallRoot()
	log.Debugf("recreating staging root %s", stage)
	if err := os.RemoveAll(stage); err != nil {
		return errors.Wrapf(err, "failed to remove staging root %s", stage)
	}
	if err := os.MkdirAll(stage, 0755); err != nil {
		return errors.Wrapf(err, "failed to create staging root %s", stage)
	}
	return r.Run(ctx, cfg.SourceRoot, "make", "install",
		"DESTDIR="+stage, "EFIDIR="+EFIDir)
}

// ArtifactDir is where the install target places the EFI binaries
// inside the staging root.
func ArtifactDir(cfg *config.Config) string {
	return filepath.Join(cfg.InstallRoot(), "boot", "efi", "EFI", EFIDir)
}

// CopyArtifacts copies every installed .efi binary into the vendor
// directory on the ESP. The ESP root must already exist; a missing
// destination aborts rather than silently skipping the copy.
func CopyArtifacts(cfg *config.Config, espRoot string) ([]string, error) {
	info, err := os.Stat(espRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "ESP root %s is not accessible", espRoot)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ESP root %s is not a directory", espRoot)
	}

	srcDir := ArtifactDir(cfg)
	matches, err := filepath.Glob(filepath.Join(srcDir, "*.efi"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list artifacts")
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no .efi artifacts in %s; run make and install first", srcDir)
	}

	destDir := filepath.Join(espRoot, "EFI", EFIDir)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", destDir)
	}

	var copied []string
	for _, src := range matches {
		dest := filepath.Join(destDir, filepath.Base(src))
		if err := copyFile(src, dest); err != nil {
			return nil, err
		}
		log.Infof("installed %s", dest)
		copied = append(copied, dest)
	}
	return copied, nil
}

// copyFile writes through a temp file in the destination directory and
// renames into place, so a half-written binary never lands on the ESP.
func copyFile(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", src)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+"-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary file")
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to copy %s", src)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to set permissions")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temporary file")
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return errors.Wrapf(err, "failed to install %s", dest)
	}
	success = true
	return nil
}
