package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsguard/shellgate/internal/config"
)

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config <path>",
		Short: "Write a default config document with one profile per supported shell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if err := config.WriteDefault(path); err != nil {
				return fmt.Errorf("write default config: %w", err)
			}
			fmt.Printf("wrote default config to %s\n", path)
			return nil
		},
	}
}
