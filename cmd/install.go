package cmd

import (
	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/shimforge/shimforge/pkg/lockfile"
	"github.com/shimforge/shimforge/pkg/shimbuild"
)

// InstallCommand represents the install command
var InstallCommand = &cobra.Command{
	Use:   "install [esp-root]",
	Short: "Install built artifacts, optionally copying them to an ESP",
	Long: `Recreates the staging directory under the output root and runs the shim
install target into it. With an ESP root argument, the installed .efi
binaries are then copied into EFI/` + shimbuild.EFIDir + `/ on that partition; the
destination must already exist and a failed copy is fatal.`,
	Example: `  # Stage artifacts under the output root
  shimforge install

  # Stage and copy onto a mounted ESP
  shimforge install /boot/efi`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(cmd)
		if err != nil {
			return err
		}

		release, err := lockfile.Acquire(cfg.LockPath())
		if err != nil {
			return err
		}
		defer release()

		target, err := buildRunner(cfg)
		if err != nil {
			return err
		}
		if err := shimbuild.Install(cmd.Context(), target, cfg); err != nil {
			return err
		}

		if len(args) == 1 {
			copied, err := shimbuild.CopyArtifacts(cfg, args[0])
			if err != nil {
				return err
			}
			log.Infof("copied %d artifacts to %s", len(copied), args[0])
		}
		return nil
	},
}
