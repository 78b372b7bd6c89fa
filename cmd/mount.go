package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/shimforge/shimforge/pkg/mountfs"
	"github.com/shimforge/shimforge/pkg/vm"
)

// MountCommand represents the mount command
var MountCommand = &cobra.Command{
	Use:   "mount [path]",
	Short: "Surface the VM's filesystem on the host via sshfs",
	Long: `Mounts the build VM's root filesystem at the given path (default
<output-root>/vmroot) using sshfs. The mount point must be empty and not
already mounted; the VM must be reachable over its IPv4 address.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		host := hostRunner(cfg)

		if err := host.LookPath(ctx, "sshfs"); err != nil {
			return fmt.Errorf("sshfs is not installed on the host")
		}

		mountPoint := filepath.Join(cfg.OutputRoot, "vmroot")
		if len(args) == 1 {
			mountPoint, err = filepath.Abs(args[0])
			if err != nil {
				return err
			}
		}

		if err := mountfs.PrepareMountPoint(mountPoint); err != nil {
			return err
		}

		table, err := mountfs.MountTable(ctx, host)
		if err != nil {
			return err
		}
		if mountfs.TableListsMount(table, mountPoint) {
			return fmt.Errorf("%s is already mounted", mountPoint)
		}

		mgr := &vm.Manager{Host: host, Instance: cfg.Instance}
		ip, err := mgr.IP(ctx)
		if err != nil {
			return err
		}

		if err := mountfs.Mount(ctx, host, mountfs.DefaultUser, ip, mountfs.DefaultRemoteDir, mountPoint); err != nil {
			return err
		}
		log.Infof("mounted instance %s at %s", cfg.Instance, mountPoint)
		return nil
	},
}
