package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/inkwell/internal/models"
)

// Manual trigger statuses. RateLimited is a status, not an error: hitting the
// cooldown is normal operation and callers render it as such.
const (
	TriggerCompleted   = "completed"
	TriggerRateLimited = "rate_limited"
	TriggerNoPlatforms = "no_platforms"
)

// TriggerResult is the outcome of a manual signal-processing request.
type TriggerResult struct {
	Status              string        `json:"status"`
	DeliverablesCreated int           `json:"deliverables_created"`
	RetryAfter          time.Duration `json:"retry_after,omitempty"`
}

// TriggerSignalProcessing runs an on-demand pattern analysis for one owner,
// subject to a per-owner cooldown so the user cannot hammer source platforms.
func (s *Sweeper) TriggerSignalProcessing(ctx context.Context, ownerID string, now time.Time) (*TriggerResult, error) {
	var acct models.Account
	if err := s.DB.Where("id = ?", ownerID).First(&acct).Error; err != nil {
		return nil, fmt.Errorf("scheduler: load account %s: %w", ownerID, err)
	}

	cooldown := s.Cfg.Scheduler.ManualCooldown
	if acct.LastManualTriggerAt != nil {
		elapsed := now.Sub(*acct.LastManualTriggerAt)
		if elapsed < cooldown {
			return &TriggerResult{
				Status:     TriggerRateLimited,
				RetryAfter: cooldown - elapsed,
			}, nil
		}
	}

	if len(s.Cfg.Sources) == 0 {
		return &TriggerResult{Status: TriggerNoPlatforms}, nil
	}

	if err := s.DB.Model(&models.Account{}).Where("id = ?", acct.ID).
		Update("last_manual_trigger_at", now).Error; err != nil {
		return nil, fmt.Errorf("scheduler: record manual trigger: %w", err)
	}

	created := 0
	if s.Detector != nil {
		suggestions, err := s.Detector.Analyze(ctx, &acct, now)
		if err != nil {
			return nil, err
		}
		created = len(suggestions)
	}
	return &TriggerResult{Status: TriggerCompleted, DeliverablesCreated: created}, nil
}
