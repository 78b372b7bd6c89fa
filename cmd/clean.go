package cmd

import (
	"github.com/spf13/cobra"

	"github.com/shimforge/shimforge/pkg/shimbuild"
)

// CleanCommand represents the clean command
var CleanCommand = &cobra.Command{
	Use:   "clean",
	Short: "Run the shim clean target",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(cmd)
		if err != nil {
			return err
		}
		target, err := buildRunner(cfg)
		if err != nil {
			return err
		}
		return shimbuild.Clean(cmd.Context(), target, cfg)
	},
}
