package server

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/inkwell/internal/feedback"
	"github.com/zulandar/inkwell/internal/memory"
	"github.com/zulandar/inkwell/internal/models"
	"github.com/zulandar/inkwell/internal/pattern"
	"github.com/zulandar/inkwell/internal/pipeline"
	"gorm.io/gorm"
)

// handleRunDeliverable triggers one synchronous pipeline run and returns the
// created version id with its terminal status.
func handleRunDeliverable(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var d models.Deliverable
		if err := opts.DB.Where("id = ?", c.Param("id")).First(&d).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "deliverable not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		version, err := opts.Executor.Run(c.Request.Context(), &d)
		if errors.Is(err, pipeline.ErrActiveRun) {
			c.JSON(http.StatusConflict, gin.H{"error": "deliverable already has an active run"})
			return
		}
		if version == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := gin.H{
			"version_id":     version.ID,
			"version_number": version.VersionNumber,
			"status":         version.Status,
		}
		if version.FailureReason != "" {
			resp["failure_reason"] = version.FailureReason
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleListVersions(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var versions []models.DeliverableVersion
		if err := opts.DB.Where("deliverable_id = ?", c.Param("id")).
			Order("version_number DESC").Find(&versions).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"versions": versions})
	}
}

type approveRequest struct {
	FinalContent string `json:"final_content"`
}

// handleApproveVersion marks a staged version approved and kicks off feedback
// computation in the background. The response never waits for feedback:
// scoring is best-effort and decoupled from the approval.
func handleApproveVersion(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		// An empty body approves the draft as-is.
		var req approveRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var v models.DeliverableVersion
		if err := opts.DB.Where("id = ?", c.Param("id")).First(&v).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "version not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if v.Status != models.VersionStaged {
			c.JSON(http.StatusConflict, gin.H{"error": "only staged versions can be approved"})
			return
		}

		final := req.FinalContent
		if final == "" {
			final = v.DraftContent
		}

		now := time.Now()
		if err := opts.DB.Model(&models.DeliverableVersion{}).Where("id = ?", v.ID).
			Updates(map[string]interface{}{
				"status":        models.VersionApproved,
				"final_content": final,
				"approved_at":   now,
			}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if err := opts.DB.Model(&models.Account{}).Where("id = ?", v.OwnerID).
			UpdateColumn("approval_count", gorm.Expr("approval_count + 1")).Error; err != nil {
			log.Printf("server: bump approval count for %s: %v", v.OwnerID, err)
		}

		go func(versionID string) {
			if err := feedback.ProcessApproval(opts.DB, versionID, nil); err != nil {
				log.Printf("server: feedback for version %s: %v", versionID, err)
			}
		}(v.ID)

		c.JSON(http.StatusOK, gin.H{"version_id": v.ID, "status": models.VersionApproved})
	}
}

type rejectRequest struct {
	FeedbackNotes string `json:"feedback_notes"`
}

// handleRejectVersion marks a staged version rejected and stores the free-text
// notes as a preference memory for future runs.
func handleRejectVersion(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req rejectRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var v models.DeliverableVersion
		if err := opts.DB.Where("id = ?", c.Param("id")).First(&v).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "version not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if v.Status != models.VersionStaged {
			c.JSON(http.StatusConflict, gin.H{"error": "only staged versions can be rejected"})
			return
		}

		if err := opts.DB.Model(&models.DeliverableVersion{}).Where("id = ?", v.ID).
			Update("status", models.VersionRejected).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if req.FeedbackNotes != "" {
			if _, err := memory.Append(opts.DB, v.OwnerID, req.FeedbackNotes, models.MemorySourceFeedback,
				memory.AppendOpts{DeliverableID: v.DeliverableID}); err != nil {
				log.Printf("server: rejection memory for version %s: %v", v.ID, err)
			}
		}

		c.JSON(http.StatusOK, gin.H{"version_id": v.ID, "status": models.VersionRejected})
	}
}

func handleListSuggested(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		suggestions, err := pattern.ListPending(opts.DB, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"suggested": suggestions})
	}
}

func handleEnableSuggested(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := pattern.Enable(opts.DB, c.Param("id"), time.Now())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "suggestion not found"})
				return
			}
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deliverable_id": d.ID, "next_run_at": d.NextRunAt})
	}
}

func handleDismissSuggested(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := pattern.Dismiss(opts.DB, c.Param("id"), time.Now()); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "suggestion not found"})
				return
			}
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": models.SuggestionDismissed})
	}
}

// handleTrigger runs an on-demand signal-processing pass. Hitting the cooldown
// is a normal response, not an HTTP error.
func handleTrigger(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.Sweeper == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not running"})
			return
		}
		res, err := opts.Sweeper.TriggerSignalProcessing(c.Request.Context(), c.Param("id"), time.Now())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "owner not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
