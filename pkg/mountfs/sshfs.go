// Package mountfs establishes the reverse mount: the guest's filesystem
// surfaced onto the host through sshfs. The usual Multipass mount goes
// host-to-guest; this is the other direction, used to browse the VM's
// root from the host.
package mountfs

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/shimforge/shimforge/pkg/runner"
)

// DefaultRemoteDir is the guest directory exposed when none is given.
const DefaultRemoteDir = "/"

// DefaultUser is the default login account of Multipass Ubuntu guests.
const DefaultUser = "ubuntu"

// PrepareMountPoint ensures path exists, is a directory, and is empty.
// A non-empty directory is refused before any mount is attempted, so an
// existing tree is never shadowed.
func PrepareMountPoint(path string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0755); err != nil {
			return errors.Wrapf(err, "failed to create mount point %s", path)
		}
		return nil
	case err != nil:
		return errors.Wrapf(err, "failed to inspect mount point %s", path)
	}

	if !info.IsDir() {
		return fmt.Errorf("mount point %s is not a directory", path)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read mount point %s", path)
	}
	if len(entries) > 0 {
		return fmt.Errorf("mount point %s is not empty", path)
	}
	return nil
}

// MountTable returns the system mount table: /proc/self/mounts where it
// exists, the mount command's output elsewhere (macOS).
func MountTable(ctx context.Context, host runner.Runner) (string, error) {
	if data, err := os.ReadFile("/proc/self/mounts"); err == nil {
		return string(data), nil
	}
	out, err := host.Output(ctx, "", "mount")
	if err != nil {
		return "", errors.Wrap(err, "failed to read mount table")
	}
	return out, nil
}

// TableListsMount reports whether the mount table already has an entry
// at path.
func TableListsMount(table, path string) bool {
	for _, line := range strings.Split(table, "\n") {
		fields := strings.Fields(line)
		// /proc format: device path type opts ...; mount(8) format:
		// device on path (opts)
		if len(fields) >= 2 && fields[1] == path {
			return true
		}
		if len(fields) >= 3 && fields[1] == "on" && fields[2] == path {
			return true
		}
	}
	return false
}

// Mount runs sshfs to surface user@addr:remoteDir at mountPoint. On
// failure it makes one best-effort unmount attempt before reporting the
// original error; no other operation in this tool cleans up after
// itself.
func Mount(ctx context.Context, host runner.Runner, user, addr, remoteDir, mountPoint string) error {
	target := fmt.Sprintf("%s@%s:%s", user, addr, remoteDir)
	log.Infof("mounting %s at %s", target, mountPoint)
	if err := host.Run(ctx, "", "sshfs", target, mountPoint, "-o", "reconnect"); err != nil {
		Unmount(ctx, host, mountPoint)
		return errors.Wrapf(err, "failed to mount %s", target)
	}
	return nil
}

// Unmount detaches mountPoint, trying fusermount first (Linux) and
// falling back to umount (macOS). Failures are logged, not returned.
func Unmount(ctx context.Context, host runner.Runner, mountPoint string) {
	if err := host.Run(ctx, "", "fusermount", "-u", mountPoint); err == nil {
		return
	}
	if err := host.Run(ctx, "", "umount", mountPoint); err != nil {
		log.WithError(err).Warnf("failed to unmount %s", mountPoint)
	}
}
