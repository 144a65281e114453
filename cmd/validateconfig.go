package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsguard/shellgate/internal/config"
)

func validateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config <path>",
		Short: "Validate a config document without making it the active configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			fmt.Printf("%s is valid (%d shell profiles)\n", path, len(cfg.Shells))
			return nil
		},
	}
}
