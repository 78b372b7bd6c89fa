package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/shimforge/shimforge/pkg/config"
	"github.com/shimforge/shimforge/pkg/hostenv"
	"github.com/shimforge/shimforge/pkg/lockfile"
	"github.com/shimforge/shimforge/pkg/patch"
	"github.com/shimforge/shimforge/pkg/source"
	"github.com/shimforge/shimforge/pkg/vm"
)

// toolchainPackages are installed on the execution target when no
// compiler is found there.
var toolchainPackages = []string{"gcc", "make", "git", "libelf-dev"}

// SetupCommand represents the setup command
var SetupCommand = &cobra.Command{
	Use:   "setup",
	Short: "Bootstrap the build environment (idempotent)",
	Long: `Ensures everything a shim build needs exists, in order: the Multipass
client and VM (macOS only), the shared output root, the shim source tree
with a verified upstream origin, the Make.defaults debug patches, and the
build toolchain.

Every step checks before it acts, so running setup repeatedly performs no
redundant work. Any step's failure aborts the whole operation; earlier
steps are not rolled back.`,
	Args: cobra.NoArgs,
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

		return runSetup(cmd.Context(), cfg)
	},
}

func runSetup(ctx context.Context, cfg *config.Config) error {
	platform := hostenv.Detect()
	if err := hostenv.Validate(platform); err != nil {
		return err
	}

	host := hostRunner(cfg)
	mgr := &vm.Manager{Host: host, Instance: cfg.Instance}

	if hostenv.NeedsVM(platform) {
		if !mgr.Installed(ctx) {
			if err := mgr.InstallClient(ctx); err != nil {
				return err
			}
		} else {
			log.Debug("multipass already installed")
		}
		if err := mgr.EnsureRunning(ctx); err != nil {
			return err
		}
	}

	if _, err := os.Stat(cfg.OutputRoot); os.IsNotExist(err) {
		log.Infof("creating output root %s", cfg.OutputRoot)
		if err := os.MkdirAll(cfg.OutputRoot, 0755); err != nil {
			return err
		}
	} else {
		log.Debugf("output root %s already exists", cfg.OutputRoot)
	}

	if hostenv.NeedsVM(platform) {
		mounted, err := mgr.HasMount(ctx, cfg.OutputRoot)
		if err != nil {
			return err
		}
		if mounted {
			log.Debugf("%s already mounted into instance %s", cfg.OutputRoot, cfg.Instance)
		} else if err := mgr.Mount(ctx, cfg.OutputRoot); err != nil {
			return err
		}
	}

	target, err := buildRunner(cfg)
	if err != nil {
		return err
	}

	if err := source.Ensure(ctx, target, cfg.SourceRoot, cfg.Upstream); err != nil {
		return err
	}

	applied, err := patch.Apply(filepath.Join(cfg.SourceRoot, "Make.defaults"), patch.MakeDefaults)
	if err != nil {
		return err
	}
	for _, name := range applied {
		log.Infof("patched Make.defaults: %s", name)
	}
	if len(applied) == 0 {
		log.Debug("Make.defaults already patched")
	}

	if err := target.LookPath(ctx, "gcc"); err != nil {
		log.Info("installing build toolchain")
		installArgs := append([]string{"apt-get", "install", "-y"}, toolchainPackages...)
		if err := target.Run(ctx, "", "sudo", installArgs...); err != nil {
			return err
		}
	} else {
		log.Debug("build toolchain already present")
	}

	log.Info("setup complete")
	return nil
}
