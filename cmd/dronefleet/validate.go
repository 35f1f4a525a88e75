package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dronefleet/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long:  "validate checks a configuration file against the CUE schema and the engine's own constraints without starting anything.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			return fmt.Errorf("--config is required")
		}
		cfg, err := config.Load(configPath, schemaPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (cluster %s, %d drones)\n", configPath, cfg.ClusterID, cfg.Fleet.Size)
		return nil
	},
}
