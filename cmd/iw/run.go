package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/inkwell/internal/models"
)

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run <deliverable-id>",
		Short: "Run one deliverable's pipeline now",
		Long:  "Triggers a full gather/synthesize/stage chain for the deliverable and reports the version it produced.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			var d models.Deliverable
			if err := gormDB.Where("id = ?", args[0]).First(&d).Error; err != nil {
				return fmt.Errorf("load deliverable %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running %s (%s)...\n", d.ID, d.Title)

			version, err := buildExecutor(cfg, gormDB).Run(cmd.Context(), &d)
			if version != nil {
				fmt.Fprintf(out, "Version v%d (%s): %s\n", version.VersionNumber, version.ID, version.Status)
				if version.FailureReason != "" {
					fmt.Fprintf(out, "Failure: %s\n", version.FailureReason)
				}
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "inkwell.yaml", "path to Inkwell config file")
	return cmd
}
