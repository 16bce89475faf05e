package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/inkwell/internal/models"
	"gorm.io/gorm"
)

// qualityWindow is how many recent scored versions feed a deliverable's
// rolling quality score.
const qualityWindow = 5

// SweepPatterns runs one pattern-detection pass over every account. A failed
// analysis degrades to no suggestions for that owner this cycle; it never
// aborts the sweep.
func (s *Sweeper) SweepPatterns(ctx context.Context, now time.Time) error {
	if s.Detector == nil {
		return nil
	}

	pageSize := s.Cfg.Scheduler.PageSize
	lastID := ""
	for {
		var accounts []models.Account
		if err := s.DB.Where("id > ?", lastID).Order("id ASC").Limit(pageSize).
			Find(&accounts).Error; err != nil {
			return fmt.Errorf("scheduler: query accounts: %w", err)
		}
		if len(accounts) == 0 {
			return nil
		}

		for i := range accounts {
			acct := &accounts[i]
			if _, err := s.Detector.Analyze(ctx, acct, now); err != nil {
				log.Printf("scheduler: pattern analysis for %s: %v", acct.ID, err)
			}
		}
		lastID = accounts[len(accounts)-1].ID
	}
}

// UpdateQualityScores recomputes each active deliverable's rolling quality
// score from its recent edit distance scores. Quality is 1 minus the average
// distance: fewer edits per approved version means higher quality. The scan
// pages by ID cursor like the other sweeps.
func (s *Sweeper) UpdateQualityScores(now time.Time) error {
	pageSize := s.Cfg.Scheduler.PageSize
	lastID := ""
	for {
		var deliverables []models.Deliverable
		if err := s.DB.Where("status = ? AND id > ?", models.DeliverableActive, lastID).
			Order("id ASC").Limit(pageSize).Find(&deliverables).Error; err != nil {
			return fmt.Errorf("scheduler: query deliverables: %w", err)
		}
		if len(deliverables) == 0 {
			return nil
		}

		for i := range deliverables {
			d := &deliverables[i]
			score, ok, err := rollingQuality(s.DB, d.ID)
			if err != nil {
				log.Printf("scheduler: quality for %s: %v", d.ID, err)
				continue
			}
			if !ok {
				continue
			}
			if err := s.DB.Model(&models.Deliverable{}).Where("id = ?", d.ID).
				Update("quality_score", score).Error; err != nil {
				log.Printf("scheduler: store quality for %s: %v", d.ID, err)
			}
		}
		lastID = deliverables[len(deliverables)-1].ID
	}
}

// rollingQuality averages the last qualityWindow scored versions. The second
// return is false when no version has a score yet.
func rollingQuality(db *gorm.DB, deliverableID string) (float64, bool, error) {
	var versions []models.DeliverableVersion
	if err := db.Where("deliverable_id = ? AND edit_distance_score IS NOT NULL", deliverableID).
		Order("version_number DESC").Limit(qualityWindow).
		Find(&versions).Error; err != nil {
		return 0, false, err
	}
	if len(versions) == 0 {
		return 0, false, nil
	}

	sum := 0.0
	for _, v := range versions {
		sum += *v.EditDistanceScore
	}
	return 1 - sum/float64(len(versions)), true, nil
}
