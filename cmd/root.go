package cmd

import (
	"fmt"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"

	"github.com/shimforge/shimforge/pkg/config"
	"github.com/shimforge/shimforge/pkg/hostenv"
	"github.com/shimforge/shimforge/pkg/runner"
)

var (
	// Global flags
	configFile string
	outputRoot string
	sourceRoot string
	echoTrace  bool
	verbose    bool
	quiet      bool
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "shimforge",
	Short: "Build the shim UEFI bootloader, natively or inside a Multipass VM",
	Long: `shimforge fetches, patches, and builds the third-party shim UEFI bootloader
inside a Linux environment, then installs the resulting binaries to an EFI
System Partition.

On a Linux host the build runs natively; on macOS it runs inside a Multipass
VM whose output directory is shared with the host. Each invocation performs
exactly one operation and exits 0 on success or 1 on any failure.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetHandler(cli.Default)
		if verbose {
			log.SetLevel(log.DebugLevel)
			log.Debugf("Verbose logging enabled")
		} else if quiet {
			log.SetLevel(log.ErrorLevel)
		} else {
			log.SetLevel(log.InfoLevel)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Help()
		return fmt.Errorf("no command specified")
	},
}

// buildConfig resolves the invocation configuration: defaults, then the
// optional config file, then flag overrides, finalized once and passed
// explicitly to the operation.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Resolve(configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Root().PersistentFlags()
	if flags.Changed("output-root") {
		cfg.OutputRoot = outputRoot
	}
	if flags.Changed("source-root") {
		cfg.SourceRoot = sourceRoot
	}
	if echoTrace {
		cfg.Echo = true
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	log.Debugf("output root: %s", cfg.OutputRoot)
	log.Debugf("source root: %s", cfg.SourceRoot)
	return cfg, nil
}

// hostRunner always executes on the host, regardless of platform. VM
// lifecycle commands and the sshfs mount go through it.
func hostRunner(cfg *config.Config) *runner.Local {
	return &runner.Local{Echo: cfg.Echo}
}

// buildRunner resolves the execution strategy once per invocation: local
// processes on Linux, multipass exec on macOS. Every external command an
// operation issues goes through the returned runner; strategies are
// never mixed within one operation.
func buildRunner(cfg *config.Config) (runner.Runner, error) {
	p := hostenv.Detect()
	if err := hostenv.Validate(p); err != nil {
		return nil, err
	}
	if hostenv.NeedsVM(p) {
		log.Debugf("executing inside instance %s", cfg.Instance)
		return &runner.Multipass{Instance: cfg.Instance, Echo: cfg.Echo}, nil
	}
	log.Debug("executing locally")
	return hostRunner(cfg), nil
}

func init() {
	cobra.EnableCommandSorting = false

	RootCmd.PersistentFlags().StringVarP(&outputRoot, "output-root", "r", "", "Build output root (default ~/shimforge)")
	RootCmd.PersistentFlags().StringVarP(&sourceRoot, "source-root", "s", "", "Shim source tree (default <output-root>/shim)")
	RootCmd.PersistentFlags().BoolVar(&echoTrace, "echo", false, "Trace external commands to stderr")
	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default "+config.DefaultConfigPath+")")
	RootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Increase log verbosity")
	RootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress progress output")

	RootCmd.AddCommand(SetupCommand)   // Step 1: bootstrap the environment
	RootCmd.AddCommand(CleanCommand)   // Build: clean target
	RootCmd.AddCommand(MakeCommand)    // Build: default target
	RootCmd.AddCommand(InstallCommand) // Build: install target + ESP copy
	RootCmd.AddCommand(MountCommand)   // Utility: reverse sshfs mount
}
