package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/inkwell/internal/pattern"
	"github.com/zulandar/inkwell/internal/scheduler"
)

func newSuggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Work with suggested deliverables",
	}

	cmd.AddCommand(newSuggestListCmd())
	cmd.AddCommand(newSuggestEnableCmd())
	cmd.AddCommand(newSuggestDismissCmd())
	cmd.AddCommand(newSuggestTriggerCmd())
	return cmd
}

func newSuggestListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <owner-id>",
		Short: "List pending suggestions for an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			suggestions, err := pattern.ListPending(gormDB, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(suggestions) == 0 {
				fmt.Fprintln(out, "No pending suggestions.")
				return nil
			}
			for _, s := range suggestions {
				fmt.Fprintf(out, "%s  %.2f  %s (%s %s %s)\n    %s\n",
					s.ID, s.Confidence, s.ProposedTitle,
					s.ProposedFrequency, s.ProposedDay, s.ProposedTime, s.DetectionReason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "inkwell.yaml", "path to Inkwell config file")
	return cmd
}

func newSuggestEnableCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "enable <suggestion-id>",
		Short: "Turn a suggestion into an active deliverable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			d, err := pattern.Enable(gormDB, args[0], time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enabled as deliverable %s (%s)\nFirst run: %s\n",
				d.ID, d.Title, d.NextRunAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "inkwell.yaml", "path to Inkwell config file")
	return cmd
}

func newSuggestDismissCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "dismiss <suggestion-id>",
		Short: "Dismiss a suggestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			if err := pattern.Dismiss(gormDB, args[0], time.Now()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Dismissed.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "inkwell.yaml", "path to Inkwell config file")
	return cmd
}

func newSuggestTriggerCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "trigger <owner-id>",
		Short: "Run signal processing for an owner now",
		Long:  "Runs an on-demand pattern analysis, subject to the per-owner cooldown.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			executor := buildExecutor(cfg, gormDB)
			sweeper := &scheduler.Sweeper{
				DB:       gormDB,
				Cfg:      cfg,
				Executor: executor,
				Detector: &pattern.Detector{DB: gormDB, Notifier: executor.Notifier},
			}

			res, err := sweeper.TriggerSignalProcessing(cmd.Context(), args[0], time.Now())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch res.Status {
			case scheduler.TriggerRateLimited:
				fmt.Fprintf(out, "Rate limited; retry in %s.\n", res.RetryAfter.Round(time.Second))
			case scheduler.TriggerNoPlatforms:
				fmt.Fprintln(out, "No source platforms configured.")
			default:
				fmt.Fprintf(out, "Completed; %d suggestion(s) created.\n", res.DeliverablesCreated)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "inkwell.yaml", "path to Inkwell config file")
	return cmd
}
