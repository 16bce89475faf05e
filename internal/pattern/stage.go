// Package pattern analyzes recent interaction sessions for cross-session
// repetition and proposes new deliverables, gated by how mature the account
// is. Suggestions always wait for explicit user action.
package pattern

import (
	"time"

	"github.com/zulandar/inkwell/internal/models"
)

// User stages, in increasing maturity.
const (
	StageOnboarding = "onboarding"
	StageExploring  = "exploring"
	StageActive     = "active"
	StagePowerUser  = "power_user"
)

const (
	onboardingMinAge      = 7 * 24 * time.Hour
	onboardingMinSessions = 5

	activeMinSessions  = 15
	activeMinApprovals = 3

	powerUserMinSessions  = 40
	powerUserMinApprovals = 10
)

// Confidence thresholds per stage. Onboarding has no threshold: detection is
// skipped entirely.
var stageThresholds = map[string]float64{
	StageExploring: 0.70,
	StageActive:    0.50,
	StagePowerUser: 0.40,
}

// StageFor derives the user stage from account age and engagement counters.
func StageFor(acct *models.Account, now time.Time) string {
	if now.Sub(acct.CreatedAt) < onboardingMinAge || acct.SessionCount < onboardingMinSessions {
		return StageOnboarding
	}
	if acct.SessionCount >= powerUserMinSessions && acct.ApprovalCount >= powerUserMinApprovals {
		return StagePowerUser
	}
	if acct.SessionCount >= activeMinSessions || acct.ApprovalCount >= activeMinApprovals {
		return StageActive
	}
	return StageExploring
}

// ThresholdFor returns the suggestion confidence threshold for a stage. The
// second return is false for stages that never receive suggestions.
func ThresholdFor(stage string) (float64, bool) {
	th, ok := stageThresholds[stage]
	return th, ok
}
