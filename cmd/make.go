package cmd

import (
	"github.com/spf13/cobra"

	"github.com/shimforge/shimforge/pkg/shimbuild"
)

// MakeCommand represents the make command
var MakeCommand = &cobra.Command{
	Use:   "make [VAR=value...]",
	Short: "Run the shim default build target",
	Long: `Builds shim in the source tree. All arguments are forwarded to make
verbatim as build variables, in addition to the fixed loader-path and
devel-security-policy overrides.`,
	Example: `  # Plain build
  shimforge make

  # Pass extra build variables through
  shimforge make ARCH=aa64 VENDOR_CERT_FILE=cert.der`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(cmd)
		if err != nil {
			return err
		}
		target, err := buildRunner(cfg)
		if err != nil {
			return err
		}
		return shimbuild.Make(cmd.Context(), target, cfg, args)
	},
}
