package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/inkwell/internal/models"
	"github.com/zulandar/inkwell/internal/schedule"
)

func newDeliverableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deliverable",
		Aliases: []string{"del"},
		Short:   "Manage recurring deliverables",
	}

	cmd.AddCommand(newDeliverableAddCmd())
	cmd.AddCommand(newDeliverableListCmd())
	return cmd
}

func newDeliverableAddCmd() *cobra.Command {
	var (
		configPath string
		owner      string
		frequency  string
		day        string
		timeOfDay  string
		timezone   string
		cronExpr   string
		srcs       []string
		template   string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Register a new recurring deliverable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			descriptors := make([]models.SourceDescriptor, 0, len(srcs))
			for _, s := range srcs {
				platform, resource, ok := cutSource(s)
				if !ok {
					return fmt.Errorf("source %q must be platform/resource", s)
				}
				descriptors = append(descriptors, models.SourceDescriptor{Platform: platform, Resource: resource})
			}
			encoded, err := json.Marshal(descriptors)
			if err != nil {
				return fmt.Errorf("encode sources: %w", err)
			}

			now := time.Now()
			next, err := schedule.Next(schedule.Spec{
				Frequency: frequency,
				Day:       day,
				TimeOfDay: timeOfDay,
				Timezone:  timezone,
				CronExpr:  cronExpr,
			}, now)
			if err != nil {
				return err
			}

			d := models.Deliverable{
				ID:                models.NewID(),
				OwnerID:           owner,
				Title:             args[0],
				Frequency:         frequency,
				Day:               day,
				TimeOfDay:         timeOfDay,
				Timezone:          timezone,
				CronExpr:          cronExpr,
				Sources:           string(encoded),
				TemplateStructure: template,
				Status:            models.DeliverableActive,
				NextRunAt:         &next,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if err := gormDB.Create(&d).Error; err != nil {
				return fmt.Errorf("create deliverable: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created deliverable %s (%s)\nFirst run: %s\n",
				d.ID, d.Title, next.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "inkwell.yaml", "path to Inkwell config file")
	cmd.Flags().StringVar(&owner, "owner", "", "owner account ID")
	cmd.Flags().StringVar(&frequency, "frequency", "weekly", "daily, weekly, monthly, or cron")
	cmd.Flags().StringVar(&day, "day", "monday", "weekday (weekly) or day of month (monthly)")
	cmd.Flags().StringVar(&timeOfDay, "time", "09:00", "time of day, HH:MM")
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "IANA timezone")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "5-field cron expression (with --frequency cron)")
	cmd.Flags().StringArrayVar(&srcs, "source", nil, "content source as platform/resource (repeatable)")
	cmd.Flags().StringVar(&template, "template", "", "required structure for drafts")
	cmd.MarkFlagRequired("owner")
	return cmd
}

func newDeliverableListCmd() *cobra.Command {
	var (
		configPath string
		owner      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deliverables",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			q := gormDB.Order("created_at ASC")
			if owner != "" {
				q = q.Where("owner_id = ?", owner)
			}
			var deliverables []models.Deliverable
			if err := q.Find(&deliverables).Error; err != nil {
				return fmt.Errorf("list deliverables: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(deliverables) == 0 {
				fmt.Fprintln(out, "No deliverables.")
				return nil
			}
			for _, d := range deliverables {
				next := "-"
				if d.NextRunAt != nil {
					next = d.NextRunAt.Format(time.RFC3339)
				}
				fmt.Fprintf(out, "%s  %-10s %-8s next=%s quality=%.2f  %s\n",
					d.ID, d.Status, d.Frequency, next, d.QualityScore, d.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "inkwell.yaml", "path to Inkwell config file")
	cmd.Flags().StringVar(&owner, "owner", "", "filter by owner account ID")
	return cmd
}

// cutSource splits "platform/resource", keeping any extra slashes in the
// resource part.
func cutSource(s string) (platform, resource string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return s[:i], s[i+1:], i > 0 && i < len(s)-1
		}
	}
	return "", "", false
}
