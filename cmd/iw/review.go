package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/inkwell/internal/feedback"
	"github.com/zulandar/inkwell/internal/memory"
	"github.com/zulandar/inkwell/internal/models"
	"gorm.io/gorm"
)

func newReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review staged versions",
	}

	cmd.AddCommand(newReviewListCmd())
	cmd.AddCommand(newApproveCmd())
	cmd.AddCommand(newRejectCmd())
	return cmd
}

func newReviewListCmd() *cobra.Command {
	var (
		configPath string
		owner      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List versions waiting for review",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			q := gormDB.Where("status = ?", models.VersionStaged).Order("created_at ASC")
			if owner != "" {
				q = q.Where("owner_id = ?", owner)
			}
			var versions []models.DeliverableVersion
			if err := q.Find(&versions).Error; err != nil {
				return fmt.Errorf("list staged versions: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(versions) == 0 {
				fmt.Fprintln(out, "Nothing staged.")
				return nil
			}
			for _, v := range versions {
				staged := "-"
				if v.StagedAt != nil {
					staged = v.StagedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(out, "%s  v%-3d deliverable=%s staged=%s\n", v.ID, v.VersionNumber, v.DeliverableID, staged)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "inkwell.yaml", "path to Inkwell config file")
	cmd.Flags().StringVar(&owner, "owner", "", "filter by owner account ID")
	return cmd
}

func newApproveCmd() *cobra.Command {
	var (
		configPath string
		finalPath  string
	)

	cmd := &cobra.Command{
		Use:   "approve <version-id>",
		Short: "Approve a staged version",
		Long:  "Approves a staged version. With --final, the edited file becomes the final content and feeds the feedback engine; without it, the draft is approved as-is.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			final := ""
			if finalPath != "" {
				data, err := readAll(finalPath)
				if err != nil {
					return err
				}
				final = string(data)
			}
			return runApprove(cmd.OutOrStdout(), gormDB, args[0], final)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "inkwell.yaml", "path to Inkwell config file")
	cmd.Flags().StringVar(&finalPath, "final", "", "file with the edited final content ('-' for stdin)")
	return cmd
}

func runApprove(out io.Writer, gormDB *gorm.DB, versionID, final string) error {
	var v models.DeliverableVersion
	if err := gormDB.Where("id = ?", versionID).First(&v).Error; err != nil {
		return fmt.Errorf("load version %s: %w", versionID, err)
	}
	if v.Status != models.VersionStaged {
		return fmt.Errorf("version %s is %s, only staged versions can be approved", versionID, v.Status)
	}
	if final == "" {
		final = v.DraftContent
	}

	now := time.Now()
	if err := gormDB.Model(&models.DeliverableVersion{}).Where("id = ?", v.ID).
		Updates(map[string]interface{}{
			"status":        models.VersionApproved,
			"final_content": final,
			"approved_at":   now,
		}).Error; err != nil {
		return fmt.Errorf("approve version %s: %w", versionID, err)
	}
	if err := gormDB.Model(&models.Account{}).Where("id = ?", v.OwnerID).
		UpdateColumn("approval_count", gorm.Expr("approval_count + 1")).Error; err != nil {
		fmt.Fprintf(out, "Warning: approval count not updated: %v\n", err)
	}
	fmt.Fprintf(out, "Approved v%d (%s)\n", v.VersionNumber, v.ID)

	// Feedback is best-effort: a scoring failure never undoes the approval.
	if err := feedback.ProcessApproval(gormDB, v.ID, nil); err != nil {
		fmt.Fprintf(out, "Feedback skipped: %v\n", err)
		return nil
	}
	var scored models.DeliverableVersion
	if err := gormDB.Where("id = ?", v.ID).First(&scored).Error; err == nil && scored.EditDistanceScore != nil {
		fmt.Fprintf(out, "Edit distance: %.3f, categories: %s\n", *scored.EditDistanceScore, scored.EditCategories)
	}
	return nil
}

func newRejectCmd() *cobra.Command {
	var (
		configPath string
		notes      string
	)

	cmd := &cobra.Command{
		Use:   "reject <version-id>",
		Short: "Reject a staged version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			var v models.DeliverableVersion
			if err := gormDB.Where("id = ?", args[0]).First(&v).Error; err != nil {
				return fmt.Errorf("load version %s: %w", args[0], err)
			}
			if v.Status != models.VersionStaged {
				return fmt.Errorf("version %s is %s, only staged versions can be rejected", args[0], v.Status)
			}

			if err := gormDB.Model(&models.DeliverableVersion{}).Where("id = ?", v.ID).
				Update("status", models.VersionRejected).Error; err != nil {
				return fmt.Errorf("reject version %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			if notes != "" {
				if _, err := memory.Append(gormDB, v.OwnerID, notes, models.MemorySourceFeedback,
					memory.AppendOpts{DeliverableID: v.DeliverableID}); err != nil {
					fmt.Fprintf(out, "Warning: notes not stored: %v\n", err)
				}
			}
			fmt.Fprintf(out, "Rejected v%d (%s)\n", v.VersionNumber, v.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "inkwell.yaml", "path to Inkwell config file")
	cmd.Flags().StringVar(&notes, "notes", "", "why the draft was rejected (stored as a preference)")
	return cmd
}

// readAll reads a file, or stdin when path is "-".
func readAll(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
